package role

import "testing"

func TestLookup(t *testing.T) {
	cases := []struct {
		raw     string
		ok      bool
		landing string
	}{
		{"admin", true, "/admin/dashboard"},
		{"teacher", true, "/teacher/dashboard"},
		{"student", true, "/student/dashboard"},
		{"Admin", false, ""},
		{"superuser", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		cfg, ok := Lookup(tc.raw)
		if ok != tc.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			continue
		}
		if ok && cfg.Landing != tc.landing {
			t.Errorf("Lookup(%q) landing = %q, want %q", tc.raw, cfg.Landing, tc.landing)
		}
	}
}

func TestValid(t *testing.T) {
	if !RoleStudent.Valid() {
		t.Error("student should be valid")
	}
	if Role("guest").Valid() {
		t.Error("guest should not be valid")
	}
}

func TestCan(t *testing.T) {
	cases := []struct {
		role Role
		op   string
		want bool
	}{
		{RoleAdmin, "user:create", true},
		{RoleAdmin, "exam:take", false},
		{RoleTeacher, "exam:create", true},
		{RoleTeacher, "user:create", false},
		{RoleStudent, "exam:take", true},
		{RoleStudent, "exam:create", false},
		{Role("guest"), "exam:take", false},
	}
	for _, tc := range cases {
		if got := tc.role.Can(tc.op); got != tc.want {
			t.Errorf("%s.Can(%q) = %v, want %v", tc.role, tc.op, got, tc.want)
		}
	}
}

func TestRequiredProfileFields(t *testing.T) {
	student, _ := Lookup("student")
	want := map[string]bool{"name": true, "nisn": true, "class": true}
	if len(student.RequiredProfileFields) != len(want) {
		t.Fatalf("fields = %v", student.RequiredProfileFields)
	}
	for _, f := range student.RequiredProfileFields {
		if !want[f] {
			t.Errorf("unexpected required field %q", f)
		}
	}
}
