package pipeline

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"pipecrm/internal/models"
)

// Filter narrows a deal set for presentation. Zero-valued members match
// everything.
type Filter struct {
	Stages []string                     `json:"stages,omitempty"`
	Text   string                       `json:"text,omitempty"`
	Custom map[string]models.FieldValue `json:"custom,omitempty"`
}

// Sort names a field and direction. Field may be a built-in name or a
// custom field id.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// StageGroup is one column of the board view.
type StageGroup struct {
	Stage models.Stage  `json:"stage"`
	Deals []models.Deal `json:"deals"`
}

// ApplyFilter keeps the deals matching every predicate: stage membership,
// case-insensitive substring over name/company/description, and equality on
// custom field values.
func ApplyFilter(deals []models.Deal, f Filter) []models.Deal {
	var stageSet map[string]bool
	if len(f.Stages) > 0 {
		stageSet = make(map[string]bool, len(f.Stages))
		for _, id := range f.Stages {
			stageSet[id] = true
		}
	}
	needle := strings.ToLower(strings.TrimSpace(f.Text))

	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if stageSet != nil && !stageSet[d.StageID] {
			continue
		}
		if needle != "" && !matchesText(&d, needle) {
			continue
		}
		if !matchesCustom(&d, f.Custom) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func matchesText(d *models.Deal, needle string) bool {
	for _, hay := range []string{d.Name, d.Company, d.Description} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func matchesCustom(d *models.Deal, want map[string]models.FieldValue) bool {
	for id, v := range want {
		got, ok := d.CustomFields[id]
		if !ok || !got.Equal(v) {
			return false
		}
	}
	return true
}

// SortDeals orders deals by the named field. Numeric and date fields compare
// numerically/chronologically, strings under locale-aware collation. Ties
// break by CreatedAt ascending then id, so the order is total and two runs
// over the same set always agree.
func SortDeals(deals []models.Deal, by Sort) {
	col := collate.New(language.English, collate.Loose)
	sort.SliceStable(deals, func(i, j int) bool {
		c := compareField(col, &deals[i], &deals[j], by.Field)
		if by.Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if !deals[i].CreatedAt.Equal(deals[j].CreatedAt) {
			return deals[i].CreatedAt.Before(deals[j].CreatedAt)
		}
		return deals[i].ID < deals[j].ID
	})
}

func compareField(col *collate.Collator, a, b *models.Deal, field string) int {
	switch field {
	case "name":
		return col.CompareString(a.Name, b.Name)
	case "company":
		return col.CompareString(a.Company, b.Company)
	case "description":
		return col.CompareString(a.Description, b.Description)
	case "currency":
		return col.CompareString(a.Currency, b.Currency)
	case "assigned_to":
		return col.CompareString(a.AssignedTo, b.AssignedTo)
	case "stage", "stage_id":
		return col.CompareString(a.StageID, b.StageID)
	case "value":
		return compareFloat(a.Value, b.Value)
	case "probability":
		return compareFloat(float64(a.Probability), float64(b.Probability))
	case "closing_date":
		return compareTime(a.ClosingDate, b.ClosingDate)
	case "created_at", "":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	default:
		return compareCustom(col, a.CustomFields[field], b.CustomFields[field])
	}
}

func compareCustom(col *collate.Collator, a, b models.FieldValue) int {
	switch {
	case a.Kind == models.KindNumber && b.Kind == models.KindNumber:
		return compareFloat(a.Number, b.Number)
	case a.Kind == models.KindDate && b.Kind == models.KindDate:
		return compareTime(a.Date, b.Date)
	default:
		// Mixed or absent values fall back to collation over the rendered
		// form; absent values sort first.
		return col.CompareString(a.String(), b.String())
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// GroupByStage partitions deals into board columns following the given
// stage order. Empty stages produce empty groups, never omitted; deals in
// unknown stages are dropped from the projection.
func GroupByStage(deals []models.Deal, stages []models.Stage) []StageGroup {
	groups := make([]StageGroup, len(stages))
	index := make(map[string]int, len(stages))
	for i, st := range stages {
		groups[i] = StageGroup{Stage: st, Deals: []models.Deal{}}
		index[st.ID] = i
	}
	for _, d := range deals {
		if i, ok := index[d.StageID]; ok {
			groups[i].Deals = append(groups[i].Deals, d)
		}
	}
	return groups
}
