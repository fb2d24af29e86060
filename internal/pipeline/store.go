package pipeline

import (
	"sort"
	"sync"
	"time"

	"pipecrm/internal/models"
)

// EventType labels change notifications emitted by the store.
type EventType string

const (
	EventUpserted      EventType = "deal_upserted"
	EventRemoved       EventType = "deal_removed"
	EventMoved         EventType = "deal_moved"
	EventStagesChanged EventType = "stages_changed"
)

// Event is one change notification. View recomputation subscribes to these;
// the store itself performs no remote I/O.
type Event struct {
	Type    EventType `json:"type"`
	DealID  string    `json:"deal_id,omitempty"`
	StageID string    `json:"stage_id,omitempty"`
}

// Store is the canonical local view of all deals for one tenant, indexed by
// id and partitionable by stage. Mutations are race-free across different
// deal ids; per-id serialization during a pending sync is the SyncGate's
// in-flight guard, not the store's concern.
type Store struct {
	mu       sync.RWMutex
	deals    map[string]*models.Deal
	stages   *StageConfig
	subs     map[int]chan Event
	nextSub  int
	timeFunc func() time.Time
}

func NewStore(stages *StageConfig) *Store {
	if stages == nil {
		stages = NewStageConfig(DefaultStages())
	}
	return &Store{
		deals:    make(map[string]*models.Deal),
		stages:   stages,
		subs:     make(map[int]chan Event),
		timeFunc: time.Now,
	}
}

// SetTimeFunc overrides the clock; tests use it for deterministic UpdatedAt.
func (s *Store) SetTimeFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeFunc = fn
}

// Subscribe registers a change listener. Events are dropped rather than
// blocking a slow consumer. The returned func cancels the subscription.
func (s *Store) Subscribe(buf int) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, buf)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// notify is called with s.mu held.
func (s *Store) notify(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Get returns a copy of the deal, so callers can snapshot without aliasing.
func (s *Store) Get(id string) (*models.Deal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Upsert inserts or replaces a deal by id and returns the prior value, nil
// if none. It never contacts the remote system.
func (s *Store) Upsert(deal *models.Deal) *models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.deals[deal.ID]
	s.deals[deal.ID] = deal.Clone()
	s.notify(Event{Type: EventUpserted, DealID: deal.ID, StageID: deal.StageID})
	return prev // prev is no longer reachable from the map, safe to hand out
}

// Rekey atomically replaces the record stored under oldID with deal, which
// may carry a different id. Subscribers see a single upsert, never a window
// where the record is absent.
func (s *Store) Rekey(oldID string, deal *models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deals, oldID)
	s.deals[deal.ID] = deal.Clone()
	s.notify(Event{Type: EventUpserted, DealID: deal.ID, StageID: deal.StageID})
}

// Remove deletes a deal by id and returns the removed value.
func (s *Store) Remove(id string) (*models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, E(KindNotFound, "deal %q not found", id)
	}
	delete(s.deals, id)
	s.notify(Event{Type: EventRemoved, DealID: id, StageID: d.StageID})
	return d, nil
}

// MoveStage reassigns a deal to another live stage and bumps UpdatedAt.
// Both structural checks happen before any mutation.
func (s *Store) MoveStage(id, newStageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return E(KindNotFound, "deal %q not found", id)
	}
	if !s.stages.Has(newStageID) {
		return E(KindInvalidStage, "stage %q is not in the pipeline", newStageID)
	}
	d.StageID = newStageID
	d.UpdatedAt = s.timeFunc()
	s.notify(Event{Type: EventMoved, DealID: id, StageID: newStageID})
	return nil
}

// ByStage returns the deals in a stage, most recent first.
func (s *Store) ByStage(stageID string) []models.Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Deal
	for _, d := range s.deals {
		if d.StageID == stageID {
			out = append(out, *d.Clone())
		}
	}
	sortRecentFirst(out)
	return out
}

// All returns every deal, most recent first.
func (s *Store) All() []models.Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		out = append(out, *d.Clone())
	}
	sortRecentFirst(out)
	return out
}

// Count returns the number of deals across all stages.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deals)
}

// Replace swaps the whole deal set, used when hydrating from a snapshot or
// a remote refresh.
func (s *Store) Replace(deals []models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = make(map[string]*models.Deal, len(deals))
	for i := range deals {
		s.deals[deals[i].ID] = deals[i].Clone()
	}
	s.notify(Event{Type: EventUpserted})
}

// AnyFieldValue reports whether any stored deal carries a non-empty value
// for the custom field id. The schema registry probes this before allowing
// a field definition to be removed.
func (s *Store) AnyFieldValue(fieldID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deals {
		if v, ok := d.CustomFields[fieldID]; ok && !v.IsZero() {
			return true
		}
	}
	return false
}

// Stages returns the current topology in order.
func (s *Store) Stages() []models.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stages.Stages()
}

// AddStage appends a stage to the pipeline.
func (s *Store) AddStage(stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stages.Add(stage); err != nil {
		return err
	}
	s.notify(Event{Type: EventStagesChanged, StageID: stage.ID})
	return nil
}

// RenameStage changes a stage label.
func (s *Store) RenameStage(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stages.Rename(id, label); err != nil {
		return err
	}
	s.notify(Event{Type: EventStagesChanged, StageID: id})
	return nil
}

// ReorderStages replaces the stage order.
func (s *Store) ReorderStages(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stages.Reorder(order); err != nil {
		return err
	}
	s.notify(Event{Type: EventStagesChanged})
	return nil
}

// RemoveStage deletes a stage entry. A populated stage requires reassignTo:
// every occupant moves there and the entry is dropped in the same critical
// section, so observers never see a deal pointing at a dead stage.
func (s *Store) RemoveStage(id, reassignTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stages.Has(id) {
		return E(KindNotFound, "stage %q not found", id)
	}
	var occupants []*models.Deal
	for _, d := range s.deals {
		if d.StageID == id {
			occupants = append(occupants, d)
		}
	}
	if len(occupants) > 0 {
		if reassignTo == "" {
			return E(KindStageInUse, "stage %q holds %d deal(s); supply a reassignment target", id, len(occupants))
		}
		if reassignTo == id || !s.stages.Has(reassignTo) {
			return E(KindInvalidStage, "reassignment target %q is not a live stage", reassignTo)
		}
	}
	if err := s.stages.Remove(id); err != nil {
		return err
	}
	now := s.timeFunc()
	for _, d := range occupants {
		d.StageID = reassignTo
		d.UpdatedAt = now
	}
	s.notify(Event{Type: EventStagesChanged, StageID: id})
	return nil
}

// sortRecentFirst orders by CreatedAt descending with id as tie-break so
// iteration order is reproducible.
func sortRecentFirst(deals []models.Deal) {
	sort.Slice(deals, func(i, j int) bool {
		if !deals[i].CreatedAt.Equal(deals[j].CreatedAt) {
			return deals[i].CreatedAt.After(deals[j].CreatedAt)
		}
		return deals[i].ID < deals[j].ID
	})
}
