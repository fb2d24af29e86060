package pipeline

import "pipecrm/internal/models"

// DefaultStages is the topology a tenant starts with before customizing.
func DefaultStages() []models.Stage {
	return []models.Stage{
		{ID: "discovery", Label: "Discovery", Position: 0},
		{ID: "proposal", Label: "Proposal", Position: 1},
		{ID: "negotiation", Label: "Negotiation", Position: 2},
		{ID: "won", Label: "Won", Position: 3},
	}
}

// StageConfig owns the ordered pipeline topology. It carries no lock of its
// own: the Store guards it, so stage mutations and the deal reassignments
// they imply commit under one critical section.
type StageConfig struct {
	stages []models.Stage
}

// NewStageConfig normalizes positions to the given slice order.
func NewStageConfig(stages []models.Stage) *StageConfig {
	c := &StageConfig{stages: append([]models.Stage(nil), stages...)}
	c.renumber()
	return c
}

func (c *StageConfig) renumber() {
	for i := range c.stages {
		c.stages[i].Position = i
	}
}

// Stages returns the topology in order.
func (c *StageConfig) Stages() []models.Stage {
	return append([]models.Stage(nil), c.stages...)
}

// Has reports whether id is a live stage.
func (c *StageConfig) Has(id string) bool {
	for _, s := range c.stages {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Add appends a stage to the end of the pipeline.
func (c *StageConfig) Add(stage models.Stage) error {
	if stage.ID == "" {
		return E(KindValidationFailed, "stage id must not be empty")
	}
	if c.Has(stage.ID) {
		return E(KindStageInUse, "stage %q already exists", stage.ID)
	}
	stage.Position = len(c.stages)
	c.stages = append(c.stages, stage)
	return nil
}

// Rename changes a stage's display label.
func (c *StageConfig) Rename(id, label string) error {
	for i := range c.stages {
		if c.stages[i].ID == id {
			c.stages[i].Label = label
			return nil
		}
	}
	return E(KindNotFound, "stage %q not found", id)
}

// Reorder replaces the stage order. The new order must be a permutation of
// the current stage ids.
func (c *StageConfig) Reorder(order []string) error {
	if len(order) != len(c.stages) {
		return E(KindValidationFailed, "reorder must list all %d stages", len(c.stages))
	}
	byID := make(map[string]models.Stage, len(c.stages))
	for _, s := range c.stages {
		byID[s.ID] = s
	}
	next := make([]models.Stage, 0, len(order))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			return E(KindNotFound, "stage %q not found", id)
		}
		delete(byID, id)
		next = append(next, s)
	}
	c.stages = next
	c.renumber()
	return nil
}

// Remove drops a stage entry. Callers must have already emptied the stage;
// the coupled deal reassignment lives on Store.RemoveStage.
func (c *StageConfig) Remove(id string) error {
	if len(c.stages) == 1 {
		return E(KindStageInUse, "the last remaining stage cannot be removed")
	}
	for i := range c.stages {
		if c.stages[i].ID == id {
			c.stages = append(c.stages[:i], c.stages[i+1:]...)
			c.renumber()
			return nil
		}
	}
	return E(KindNotFound, "stage %q not found", id)
}
