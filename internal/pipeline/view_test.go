package pipeline

import (
	"reflect"
	"testing"
	"time"

	"pipecrm/internal/models"
)

func viewFixture() []models.Deal {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	return []models.Deal{
		{
			ID: "d-1", Name: "Acme Expansion", Company: "Acme Corp", StageID: "discovery",
			Value: 50000, Currency: "USD", CreatedAt: base,
			CustomFields: map[string]models.FieldValue{"region": models.SelectValue("emea")},
		},
		{
			ID: "d-2", Name: "Globex Renewal", Company: "Globex", StageID: "proposal",
			Value: 12000, Currency: "USD", CreatedAt: base.Add(time.Hour),
			CustomFields: map[string]models.FieldValue{"region": models.SelectValue("apac")},
		},
		{
			ID: "d-3", Name: "initech pilot", Company: "Initech", StageID: "discovery",
			Value: 50000, Currency: "EUR", CreatedAt: base.Add(2 * time.Hour),
			Description: "expansion of the pilot",
		},
	}
}

func ids(deals []models.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.ID
	}
	return out
}

func TestFilterByStage(t *testing.T) {
	got := ApplyFilter(viewFixture(), Filter{Stages: []string{"discovery"}})
	if want := []string{"d-1", "d-3"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestFilterFreeTextIsCaseInsensitive(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"ACME", []string{"d-1"}},
		{"expansion", []string{"d-1", "d-3"}}, // name match and description match
		{"globex", []string{"d-2"}},
		{"zzz", []string{}},
	}
	for _, tc := range cases {
		got := ids(ApplyFilter(viewFixture(), Filter{Text: tc.text}))
		if !reflect.DeepEqual(got, tc.want) && !(len(got) == 0 && len(tc.want) == 0) {
			t.Errorf("text %q: expected %v, got %v", tc.text, tc.want, got)
		}
	}
}

func TestFilterByCustomField(t *testing.T) {
	got := ApplyFilter(viewFixture(), Filter{
		Custom: map[string]models.FieldValue{"region": models.SelectValue("apac")},
	})
	if len(got) != 1 || got[0].ID != "d-2" {
		t.Fatalf("expected only d-2, got %v", ids(got))
	}
}

func TestSortIsTotalAndIdempotent(t *testing.T) {
	a := viewFixture()
	b := viewFixture()

	// d-1 and d-3 tie on value; CreatedAt then id must break the tie the
	// same way every run.
	SortDeals(a, Sort{Field: "value", Descending: true})
	SortDeals(b, Sort{Field: "value", Descending: true})
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("two identical sorts disagree: %v vs %v", ids(a), ids(b))
	}
	SortDeals(a, Sort{Field: "value", Descending: true})
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("re-sorting changed the order: %v vs %v", ids(a), ids(b))
	}
	if want := []string{"d-1", "d-3", "d-2"}; !reflect.DeepEqual(ids(a), want) {
		t.Fatalf("expected %v, got %v", want, ids(a))
	}
}

func TestSortByNameIgnoresCase(t *testing.T) {
	deals := viewFixture()
	SortDeals(deals, Sort{Field: "name"})
	// Loose collation puts "initech pilot" between Globex and nothing else
	// regardless of the lowercase initial.
	if want := []string{"d-1", "d-2", "d-3"}; !reflect.DeepEqual(ids(deals), want) {
		t.Fatalf("expected %v, got %v", want, ids(deals))
	}
}

func TestSortByStage(t *testing.T) {
	deals := viewFixture()
	SortDeals(deals, Sort{Field: "stage"})
	// discovery before proposal; the discovery pair breaks the tie on
	// CreatedAt ascending.
	if want := []string{"d-1", "d-3", "d-2"}; !reflect.DeepEqual(ids(deals), want) {
		t.Fatalf("expected %v, got %v", want, ids(deals))
	}
}

func TestSortByDate(t *testing.T) {
	deals := viewFixture()
	SortDeals(deals, Sort{Field: "created_at", Descending: true})
	if want := []string{"d-3", "d-2", "d-1"}; !reflect.DeepEqual(ids(deals), want) {
		t.Fatalf("expected %v, got %v", want, ids(deals))
	}
}

func TestGroupByStageKeepsEmptyGroups(t *testing.T) {
	stages := DefaultStages()
	groups := GroupByStage(viewFixture(), stages)
	if len(groups) != len(stages) {
		t.Fatalf("expected %d groups, got %d", len(stages), len(groups))
	}
	for i, g := range groups {
		if g.Stage.ID != stages[i].ID {
			t.Fatalf("group %d out of order: %s", i, g.Stage.ID)
		}
		if g.Deals == nil {
			t.Fatalf("group %s has nil deal slice", g.Stage.ID)
		}
	}
	if len(groups[0].Deals) != 2 { // discovery
		t.Fatalf("discovery should hold 2 deals, has %d", len(groups[0].Deals))
	}
	if len(groups[3].Deals) != 0 { // won
		t.Fatalf("won should be empty, has %d", len(groups[3].Deals))
	}
}

func TestGroupByStageDropsUnknownStages(t *testing.T) {
	deals := append(viewFixture(), models.Deal{ID: "d-x", StageID: "retired"})
	groups := GroupByStage(deals, DefaultStages())
	total := 0
	for _, g := range groups {
		total += len(g.Deals)
	}
	if total != 3 {
		t.Fatalf("expected 3 grouped deals, got %d", total)
	}
}
