// Package schema owns the field definitions (built-in and user-defined)
// that describe a deal record's shape, and validates payloads against them.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"pipecrm/internal/models"
	"pipecrm/internal/pipeline"
)

// builtinIDs are reserved: a custom field may never shadow one.
var builtinIDs = map[string]bool{
	"name":         true,
	"company":      true,
	"value":        true,
	"currency":     true,
	"probability":  true,
	"stage":        true,
	"closing_date": true,
	"description":  true,
	"assigned_to":  true,
}

// Registry holds the custom field definitions for one tenant.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]models.CustomFieldDefinition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]models.CustomFieldDefinition)}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a field id from its label.
func slugify(label string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	return strings.Trim(s, "_")
}

// Register derives a collision-resistant id from the definition's label and
// stores it. An explicit id that collides with a built-in or existing custom
// field is rejected with DuplicateField.
func (r *Registry) Register(def models.CustomFieldDefinition) (models.CustomFieldDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Label == "" && def.ID == "" {
		return def, pipeline.ValidationError([]pipeline.FieldError{{Field: "label", Message: "label is required"}})
	}
	switch def.Type {
	case models.FieldTypeText, models.FieldTypeMultiline, models.FieldTypeNumber, models.FieldTypeDate:
	case models.FieldTypeSelect:
		if len(def.Options) == 0 {
			return def, pipeline.ValidationError([]pipeline.FieldError{{Field: "options", Message: "select fields need at least one option"}})
		}
	default:
		return def, pipeline.ValidationError([]pipeline.FieldError{{Field: "type", Message: fmt.Sprintf("unknown field type %q", def.Type)}})
	}
	if def.Section == "" {
		def.Section = models.SectionCustom
	}

	if def.ID != "" {
		if r.taken(def.ID) {
			return def, pipeline.E(pipeline.KindDuplicateField, "field id %q already exists", def.ID)
		}
	} else {
		base := slugify(def.Label)
		if base == "" {
			base = "field"
		}
		id := base
		for n := 2; r.taken(id); n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		def.ID = id
	}

	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return def, nil
}

func (r *Registry) taken(id string) bool {
	if builtinIDs[id] {
		return true
	}
	_, ok := r.defs[id]
	return ok
}

// Remove drops a definition. inUse probes current deal records; the registry
// refuses to orphan live values, callers must migrate or clear them first.
func (r *Registry) Remove(id string, inUse func(fieldID string) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if builtinIDs[id] {
		return pipeline.E(pipeline.KindFieldInUse, "built-in field %q cannot be removed", id)
	}
	if _, ok := r.defs[id]; !ok {
		return pipeline.E(pipeline.KindNotFound, "field %q not found", id)
	}
	if inUse != nil && inUse(id) {
		return pipeline.E(pipeline.KindFieldInUse, "field %q has stored values; clear or migrate them first", id)
	}
	delete(r.defs, id)
	for i, fid := range r.order {
		if fid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a definition by id.
func (r *Registry) Get(id string) (models.CustomFieldDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Definitions returns all custom definitions in registration order.
func (r *Registry) Definitions() []models.CustomFieldDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CustomFieldDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// Load replaces the registry content, used when hydrating from storage.
func (r *Registry) Load(defs []models.CustomFieldDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]models.CustomFieldDefinition, len(defs))
	r.order = r.order[:0]
	for _, def := range defs {
		r.defs[def.ID] = def
		r.order = append(r.order, def.ID)
	}
}

// Validate checks a deal against the built-in constraints and every custom
// definition. All failing fields are reported together.
func (r *Registry) Validate(d *models.Deal) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []pipeline.FieldError
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, pipeline.FieldError{Field: "name", Message: "name is required"})
	}
	if d.StageID == "" {
		errs = append(errs, pipeline.FieldError{Field: "stage", Message: "stage is required"})
	}
	if d.Probability < 0 || d.Probability > 100 {
		errs = append(errs, pipeline.FieldError{Field: "probability", Message: "probability must be between 0 and 100"})
	}
	if d.Currency != "" && len(d.Currency) != 3 {
		errs = append(errs, pipeline.FieldError{Field: "currency", Message: "currency must be a three-letter ISO code"})
	}

	for _, id := range r.order {
		def := r.defs[id]
		v, present := d.CustomFields[id]
		if !present || v.IsZero() {
			if def.Required {
				errs = append(errs, pipeline.FieldError{Field: id, Message: fmt.Sprintf("%s is required", def.Label)})
			}
			continue
		}
		if v.Kind != def.ValueKind() {
			errs = append(errs, pipeline.FieldError{
				Field:   id,
				Message: fmt.Sprintf("expected a %s value, got %s", def.ValueKind(), v.Kind),
			})
			continue
		}
		if def.Type == models.FieldTypeSelect && !contains(def.Options, v.Option) {
			errs = append(errs, pipeline.FieldError{
				Field:   id,
				Message: fmt.Sprintf("%q is not one of the declared options", v.Option),
			})
		}
	}
	// Values for field ids that were never declared are rejected too,
	// otherwise a removed definition could silently resurrect.
	for id := range d.CustomFields {
		if _, ok := r.defs[id]; !ok {
			errs = append(errs, pipeline.FieldError{Field: id, Message: "unknown custom field"})
		}
	}

	if len(errs) > 0 {
		return pipeline.ValidationError(errs)
	}
	return nil
}

func contains(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}
