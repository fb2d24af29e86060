package models

import (
	"strings"
	"time"
)

// AssignedToOwner is the sentinel for deals assigned to the account owner
// rather than a named team member.
const AssignedToOwner = "owner"

// LocalIDPrefix marks placeholder ids assigned before the remote system
// has confirmed creation.
const LocalIDPrefix = "local-"

// Deal is a single record in the sales pipeline.
type Deal struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Company      string                `json:"company"`
	Value        float64               `json:"value"`
	Currency     string                `json:"currency"`
	Probability  int                   `json:"probability"`
	StageID      string                `json:"stage_id"`
	ClosingDate  time.Time             `json:"closing_date"`
	Description  string                `json:"description"`
	AssignedTo   string                `json:"assigned_to,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CustomFields map[string]FieldValue `json:"custom_fields,omitempty"`
	Attachments  []Attachment          `json:"attachments,omitempty"`
	Appointments []Appointment         `json:"appointments,omitempty"`
}

// Attachment is opaque metadata carried on a deal; the engine stores it
// but never interprets it.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// Appointment is opaque scheduling metadata carried on a deal.
type Appointment struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
}

// IsLocal reports whether the deal still carries a placeholder id,
// i.e. the remote system has not confirmed its creation yet.
func (d *Deal) IsLocal() bool {
	return strings.HasPrefix(d.ID, LocalIDPrefix)
}

// Clone returns a deep copy. Rollback snapshots must not alias the live
// record's map or slices.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}
	cp := *d
	if d.CustomFields != nil {
		cp.CustomFields = make(map[string]FieldValue, len(d.CustomFields))
		for k, v := range d.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	if d.Attachments != nil {
		cp.Attachments = append([]Attachment(nil), d.Attachments...)
	}
	if d.Appointments != nil {
		cp.Appointments = append([]Appointment(nil), d.Appointments...)
	}
	return &cp
}
