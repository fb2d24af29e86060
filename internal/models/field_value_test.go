package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFieldValueJSONShape(t *testing.T) {
	raw, err := json.Marshal(SelectValue("emea"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"kind":"select","option":"emea"}` {
		t.Fatalf("unexpected wire form: %s", raw)
	}

	raw, err = json.Marshal(NumberValue(12))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"kind":"number","value":12}` {
		t.Fatalf("unexpected wire form: %s", raw)
	}
}

func TestFieldValueDecode(t *testing.T) {
	var v FieldValue
	if err := json.Unmarshal([]byte(`{"kind":"date","value":"2026-09-01T00:00:00Z"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := DateValue(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if !v.Equal(want) {
		t.Fatalf("decoded %+v, want %+v", v, want)
	}

	if err := json.Unmarshal([]byte(`{"kind":"number","value":"twelve"}`), &v); err == nil {
		t.Fatal("mistyped payload should fail to decode")
	}
	if err := json.Unmarshal([]byte(`{"kind":"percentage","value":1}`), &v); err == nil {
		t.Fatal("unknown kind should fail to decode")
	}
}

func TestFieldValueZeroAndEqual(t *testing.T) {
	if !(FieldValue{}).IsZero() {
		t.Fatal("kindless value must be zero")
	}
	if !TextValue("").IsZero() || TextValue("x").IsZero() {
		t.Fatal("text emptiness misreported")
	}
	if NumberValue(0).IsZero() {
		t.Fatal("an explicit numeric zero is a real value")
	}
	if TextValue("a").Equal(SelectValue("a")) {
		t.Fatal("values of different kinds are never equal")
	}
}

func TestDealCloneDoesNotAlias(t *testing.T) {
	d := &Deal{
		ID:           "d-1",
		CustomFields: map[string]FieldValue{"region": SelectValue("emea")},
		Attachments:  []Attachment{{ID: "a-1"}},
	}
	cp := d.Clone()
	cp.CustomFields["region"] = SelectValue("apac")
	cp.Attachments[0].ID = "a-2"

	if d.CustomFields["region"].Option != "emea" || d.Attachments[0].ID != "a-1" {
		t.Fatal("clone shares backing storage with the original")
	}
}
