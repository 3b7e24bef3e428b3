package validator

import (
	"strings"
	"testing"
)

type testPayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=owner admin member"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Name:  "alice",
		Email: "alice@example.com",
		Role:  "member",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Name:  "",
		Email: "invalid",
		Role:  "supervisor",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundEmail := false
	for _, v := range vErrs {
		if v.Field == "email" {
			foundEmail = true
		}
	}

	if !foundEmail {
		t.Fatal("expected email field to use its json name in validation errors")
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "name", Tag: "required"},
		{Field: "role", Tag: "oneof", Param: "owner admin member"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "name failed on required") {
		t.Fatalf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "oneof=owner admin member") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
