package services

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNullableID_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		set   bool
		value *uint
	}{
		{"absent", `{}`, false, nil},
		{"null", `{"id": null}`, true, nil},
		{"value", `{"id": 7}`, true, uintPtr(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				ID NullableID `json:"id"`
			}
			if err := json.Unmarshal([]byte(tt.body), &v); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if v.ID.Set != tt.set {
				t.Errorf("Set = %v, expected %v", v.ID.Set, tt.set)
			}
			if (v.ID.Value == nil) != (tt.value == nil) || (v.ID.Value != nil && *v.ID.Value != *tt.value) {
				t.Errorf("Value = %v, expected %v", v.ID.Value, tt.value)
			}
		})
	}
}

func TestNullableID_RejectsNonNumber(t *testing.T) {
	var v struct {
		ID NullableID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id": "seven"}`), &v); err == nil {
		t.Error("expected an error for a string id")
	}
}

func TestNullableDate_Unmarshal(t *testing.T) {
	var v struct {
		Due NullableDate `json:"due_date"`
	}
	if err := json.Unmarshal([]byte(`{"due_date": "2026-07-15"}`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !v.Due.Set || v.Due.Value == nil || v.Due.Value.Format(dateLayout) != "2026-07-15" {
		t.Errorf("Due = %+v", v.Due)
	}

	for _, bad := range []string{`"15/07/2026"`, `"2026-13-01"`, `20260715`} {
		err := json.Unmarshal([]byte(`{"due_date": `+bad+`}`), &v)
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			t.Fatalf("Unmarshal(%s) error = %v, expected *json.UnmarshalTypeError", bad, err)
		}
		if typeErr.Field != "due_date" || typeErr.Type != DateType {
			t.Errorf("Unmarshal(%s) field = %q type = %v", bad, typeErr.Field, typeErr.Type)
		}
	}

	out, err := json.Marshal(NullableDate{})
	if err != nil || string(out) != "null" {
		t.Errorf("Marshal(empty) = %s, %v", out, err)
	}
}
