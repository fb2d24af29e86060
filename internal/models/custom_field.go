package models

// FieldType is the declared type of a custom field definition.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeMultiline FieldType = "multiline"
	FieldTypeNumber    FieldType = "number"
	FieldTypeSelect    FieldType = "select"
	FieldTypeDate      FieldType = "date"
)

// FieldSection is the form section a field is rendered into. Opaque to the
// engine beyond round-tripping.
type FieldSection string

const (
	SectionBasic   FieldSection = "basic"
	SectionDetails FieldSection = "details"
	SectionCustom  FieldSection = "custom"
)

// CustomFieldDefinition describes one runtime-added deal attribute.
// Type is immutable once registered; replacing a field's type requires
// delete + recreate so existing values never become unreadable.
type CustomFieldDefinition struct {
	ID          string       `json:"id"`
	Type        FieldType    `json:"type"`
	Label       string       `json:"label"`
	Placeholder string       `json:"placeholder,omitempty"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
	Section     FieldSection `json:"section"`
}

// ValueKind maps the declared type to the FieldValue kind that satisfies it.
func (d CustomFieldDefinition) ValueKind() FieldKind {
	switch d.Type {
	case FieldTypeText, FieldTypeMultiline:
		return KindText
	case FieldTypeNumber:
		return KindNumber
	case FieldTypeSelect:
		return KindSelect
	case FieldTypeDate:
		return KindDate
	default:
		return KindText
	}
}
