package validator

import (
	"testing"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

func TestStruct(t *testing.T) {
	Setup()

	t.Run("Valid", func(t *testing.T) {
		fields := Struct(model.LoginRequest{Username: "siswa1", Password: "siswa123"})
		if fields != nil {
			t.Errorf("fields = %v, want nil", fields)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		fields := Struct(model.LoginRequest{})
		if fields["username"] == "" || fields["password"] == "" {
			t.Errorf("fields = %v, want messages keyed by json tag", fields)
		}
	})

	t.Run("JSONTagNames", func(t *testing.T) {
		fields := Struct(model.CreateExamRequest{Title: "ab", Subject: "Matematika", DurationMinutes: 60})
		if _, ok := fields["title"]; !ok {
			t.Errorf("fields = %v, want a message under the json tag name %q", fields, "title")
		}
		if _, ok := fields["Title"]; ok {
			t.Error("struct field name leaked instead of the json tag")
		}
	})

	t.Run("RangeRule", func(t *testing.T) {
		fields := Struct(model.CreateKriteriaRequest{Code: "C1", Name: "Ketepatan", Weight: 1.5})
		if fields["weight"] == "" {
			t.Errorf("fields = %v, want a weight range violation", fields)
		}
	})
}
