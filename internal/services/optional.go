package services

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

var jsonNull = []byte("null")

// NullableID distinguishes an absent key (Set false) from an explicit null
// (Set true, Value nil) in PATCH bodies.
type NullableID struct {
	Set   bool
	Value *uint
}

func (n *NullableID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		n.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n NullableID) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return jsonNull, nil
	}
	return json.Marshal(*n.Value)
}

// NullableDate is a "YYYY-MM-DD" date with the same absent/null semantics as NullableID.
type NullableDate struct {
	Set   bool
	Value *time.Time
}

func (n *NullableDate) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return dateTypeError(data)
	}
	if s == "" {
		n.Value = nil
		return nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return dateTypeError(data)
	}
	n.Value = &d
	return nil
}

// dateTypeError is an *json.UnmarshalTypeError so the decoder attaches the
// offending field name before it reaches the binding layer.
func dateTypeError(data []byte) error {
	return &json.UnmarshalTypeError{Value: string(bytes.TrimSpace(data)), Type: DateType}
}

// DateType is reported as the target type of malformed date values.
var DateType = reflect.TypeOf(time.Time{})

func (n NullableDate) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return jsonNull, nil
	}
	return json.Marshal(n.Value.Format(dateLayout))
}
