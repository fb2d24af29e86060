package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldKind discriminates the FieldValue union.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
	KindSelect FieldKind = "select"
)

// FieldValue is a tagged union holding one custom-field value. Exactly one
// of the payload members is meaningful, selected by Kind.
type FieldValue struct {
	Kind   FieldKind
	Text   string
	Number float64
	Date   time.Time
	Option string
}

func TextValue(s string) FieldValue    { return FieldValue{Kind: KindText, Text: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Kind: KindNumber, Number: n} }
func DateValue(t time.Time) FieldValue { return FieldValue{Kind: KindDate, Date: t} }
func SelectValue(o string) FieldValue  { return FieldValue{Kind: KindSelect, Option: o} }

// IsZero reports whether the value is empty for its kind. A zero FieldValue
// (no kind) is also empty.
func (v FieldValue) IsZero() bool {
	switch v.Kind {
	case KindText:
		return v.Text == ""
	case KindNumber:
		return false
	case KindDate:
		return v.Date.IsZero()
	case KindSelect:
		return v.Option == ""
	default:
		return true
	}
}

// Equal compares kind and payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindNumber:
		return v.Number == o.Number
	case KindDate:
		return v.Date.Equal(o.Date)
	case KindSelect:
		return v.Option == o.Option
	default:
		return true
	}
}

// String renders the payload for display and free-text search.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindDate:
		return v.Date.Format("2006-01-02")
	case KindSelect:
		return v.Option
	default:
		return ""
	}
}

type fieldValueJSON struct {
	Kind   FieldKind   `json:"kind"`
	Value  interface{} `json:"value,omitempty"`
	Option string      `json:"option,omitempty"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	out := fieldValueJSON{Kind: v.Kind}
	switch v.Kind {
	case KindText:
		out.Value = v.Text
	case KindNumber:
		out.Value = v.Number
	case KindDate:
		out.Value = v.Date.Format(time.RFC3339)
	case KindSelect:
		out.Option = v.Option
	}
	return json.Marshal(out)
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw fieldValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FieldValue{Kind: raw.Kind}
	switch raw.Kind {
	case KindText:
		s, ok := raw.Value.(string)
		if !ok && raw.Value != nil {
			return fmt.Errorf("field value: text payload must be a string")
		}
		v.Text = s
	case KindNumber:
		n, ok := raw.Value.(float64)
		if !ok && raw.Value != nil {
			return fmt.Errorf("field value: number payload must be numeric")
		}
		v.Number = n
	case KindDate:
		s, ok := raw.Value.(string)
		if !ok {
			return fmt.Errorf("field value: date payload must be an RFC3339 string")
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("field value: parse date: %w", err)
		}
		v.Date = t
	case KindSelect:
		v.Option = raw.Option
	default:
		return fmt.Errorf("field value: unknown kind %q", raw.Kind)
	}
	return nil
}
