package role

// Role enumerates the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Config carries the per-role behavior that used to be scattered string
// comparisons: where the role lands after login, which operations it may
// perform, and which profile fields are mandatory for its account form.
type Config struct {
	Role                  Role
	Landing               string
	Operations            []string
	RequiredProfileFields []string
}

var configs = map[Role]Config{
	RoleAdmin: {
		Role:    RoleAdmin,
		Landing: "/admin/dashboard",
		Operations: []string{
			"user:create", "user:update", "user:delete", "user:list",
			"exam:create", "exam:update", "exam:delete", "exam:list",
			"question:create", "question:update", "question:delete",
			"kriteria:create", "kriteria:update", "kriteria:delete",
			"report:view",
		},
		RequiredProfileFields: []string{"name", "email"},
	},
	RoleTeacher: {
		Role:    RoleTeacher,
		Landing: "/teacher/dashboard",
		Operations: []string{
			"exam:create", "exam:update", "exam:delete", "exam:list",
			"question:create", "question:update", "question:delete",
			"report:view",
		},
		RequiredProfileFields: []string{"name", "email", "nip"},
	},
	RoleStudent: {
		Role:    RoleStudent,
		Landing: "/student/dashboard",
		Operations: []string{
			"exam:take", "result:view",
		},
		RequiredProfileFields: []string{"name", "nisn", "class"},
	},
}

// Lookup resolves a raw role string to its configuration.
// The ok result is false for any string outside the closed set.
func Lookup(raw string) (Config, bool) {
	cfg, ok := configs[Role(raw)]
	return cfg, ok
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := configs[r]
	return ok
}

// Can reports whether the role is permitted to perform op.
func (r Role) Can(op string) bool {
	cfg, ok := configs[r]
	if !ok {
		return false
	}
	for _, o := range cfg.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Landing returns the post-login navigation target for the role.
func (r Role) Landing() string {
	return configs[r].Landing
}
