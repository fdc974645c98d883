package validation

import (
	"strings"
	"testing"
)

type form struct {
	Location string `json:"location" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=MEDICATION MATERIAL EQUIPMENT"`
	Capacity int    `json:"capacity" validate:"gt=0"`
	Ignored  string `json:"-"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(form{Location: "Kho A", Type: "MATERIAL", Capacity: 10}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStruct_CollectsFieldErrors(t *testing.T) {
	err := Struct(form{Type: "FOOD"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !Has(err, "location", "required") {
		t.Error("expected location required")
	}
	if !Has(err, "type", "oneof") {
		t.Error("expected type oneof")
	}
	if !Has(err, "capacity", "gt") {
		t.Error("expected capacity gt")
	}
	msg := err.Error()
	if !strings.Contains(msg, "location là bắt buộc") {
		t.Errorf("expected readable message, got %q", msg)
	}
}
