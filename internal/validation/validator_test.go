package validation

import (
	"errors"
	"strings"
	"testing"
)

type signInInput struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
}

type entryInput struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Struct(verifyInput{Email: "not-an-email", OTP: "12ab56"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0] != "email" || verr.Fields[1] != "otp" {
		t.Fatalf("unexpected fields %v", verr.Fields)
	}
	if !strings.Contains(err.Error(), "email must be a valid email address") || !strings.Contains(err.Error(), "otp must be a 6 digit code") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	cases := []any{
		signInInput{Email: "alice@example.com"},
		verifyInput{Email: "alice@example.com", OTP: "042917"},
		entryInput{Date: "2024-03-01", Count: 0},
	}
	for _, in := range cases {
		if err := v.Struct(in); err != nil {
			t.Fatalf("expected %+v to validate, got %v", in, err)
		}
	}
}

func TestStructRejectsNegativeCountAndBadDate(t *testing.T) {
	v := New()
	err := v.Struct(entryInput{Date: "2024-13-01", Count: -1})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, want := range []string{"date must be a date", "count must be greater than or equal to 0"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestVarUsesGivenName(t *testing.T) {
	v := New()
	err := v.Var("email", "", "required,email")
	if err == nil || err.Error() != "email is required" {
		t.Fatalf("unexpected error %v", err)
	}
	if err := v.Var("otp", "123456", "otp"); err != nil {
		t.Fatalf("expected valid otp, got %v", err)
	}
}
