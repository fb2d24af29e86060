// Package syncer executes remote create/update/move/delete operations while
// keeping the local pipeline store optimistically ahead and rolled back
// exactly on failure.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipecrm/internal/models"
	"pipecrm/internal/pipeline"
)

// Remote is the system-of-record boundary the gate writes through.
type Remote interface {
	CreateDeal(ctx context.Context, payload *models.Deal) (*models.Deal, error)
	UpdateDeal(ctx context.Context, id string, patch *models.Deal) (*models.Deal, error)
	MoveDeal(ctx context.Context, id, stageID string) (*models.Deal, error)
	DeleteDeal(ctx context.Context, id string) error
	ListDeals(ctx context.Context) ([]models.Deal, error)
}

// Gate serializes remote writes per deal id. At most one task may be in
// flight for an id; a second intent is rejected with OperationInProgress
// rather than queued, since conflicting partial rollbacks cannot be
// reasoned about safely.
type Gate struct {
	store  *pipeline.Store
	remote Remote

	mu       sync.Mutex
	inflight map[string]*Task
}

func NewGate(store *pipeline.Store, remote Remote) *Gate {
	return &Gate{
		store:    store,
		remote:   remote,
		inflight: make(map[string]*Task),
	}
}

func (g *Gate) begin(dealID string, kind TaskKind, before *models.Deal) (*Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[dealID]; busy {
		return nil, pipeline.E(pipeline.KindOperationInProgress, "deal %q has a sync operation pending", dealID)
	}
	t := &Task{
		DealID:    dealID,
		Kind:      kind,
		Before:    before,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	g.inflight[dealID] = t
	return t, nil
}

func (g *Gate) finish(t *Task, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		t.Status = StatusFailed
	} else {
		t.Status = StatusSucceeded
	}
	delete(g.inflight, t.DealID)
}

// Pending returns the in-flight tasks, for introspection.
func (g *Gate) Pending() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Task, 0, len(g.inflight))
	for _, t := range g.inflight {
		out = append(out, *t)
	}
	return out
}

// Create applies the deal under a placeholder id, then asks the remote
// system to persist it. On success the record is re-keyed to the canonical
// remote id; on failure the placeholder record is removed again.
func (g *Gate) Create(ctx context.Context, deal *models.Deal) (created *models.Deal, err error) {
	deal.ID = models.LocalIDPrefix + uuid.NewString()

	t, err := g.begin(deal.ID, TaskCreate, nil)
	if err != nil {
		return nil, err
	}
	defer func() { g.finish(t, err) }()
	g.store.Upsert(deal)

	confirmed, err := g.remote.CreateDeal(ctx, deal)
	if err != nil {
		_, _ = g.store.Remove(deal.ID)
		return nil, err
	}

	merged := mergeRemote(deal, confirmed)
	g.store.Rekey(deal.ID, merged)
	return merged, nil
}

// Update replaces the deal's fields and confirms with the remote system,
// restoring the exact pre-update snapshot when the call fails.
func (g *Gate) Update(ctx context.Context, id string, updated *models.Deal) (saved *models.Deal, err error) {
	before, ok := g.store.Get(id)
	if !ok {
		return nil, pipeline.E(pipeline.KindNotFound, "deal %q not found", id)
	}
	t, err := g.begin(id, TaskUpdate, before)
	if err != nil {
		return nil, err
	}
	defer func() { g.finish(t, err) }()

	updated.ID = id
	updated.CreatedAt = before.CreatedAt
	g.store.Upsert(updated)

	confirmed, err := g.remote.UpdateDeal(ctx, id, updated)
	if err != nil {
		g.store.Upsert(before)
		return nil, err
	}

	merged := mergeRemote(updated, confirmed)
	g.store.Upsert(merged)
	return merged, nil
}

// Move performs the optimistic stage transition. Structural failures
// (unknown deal, unknown stage) surface before any mutation; only a remote
// failure triggers the snapshot restore.
func (g *Gate) Move(ctx context.Context, id, stageID string) (moved *models.Deal, err error) {
	before, ok := g.store.Get(id)
	if !ok {
		return nil, pipeline.E(pipeline.KindNotFound, "deal %q not found", id)
	}
	t, err := g.begin(id, TaskMove, before)
	if err != nil {
		return nil, err
	}
	defer func() { g.finish(t, err) }()

	if err = g.store.MoveStage(id, stageID); err != nil {
		// Nothing was mutated, so nothing to roll back.
		return nil, err
	}

	confirmed, err := g.remote.MoveDeal(ctx, id, stageID)
	if err != nil {
		g.store.Upsert(before)
		return nil, err
	}

	local, ok := g.store.Get(id)
	if !ok {
		// The record vanished while the remote call was suspended (a
		// snapshot replace can land mid-flight); rebuild it from the
		// pre-move snapshot.
		local = before.Clone()
		local.StageID = stageID
	}
	merged := mergeRemote(local, confirmed)
	g.store.Upsert(merged)
	return merged, nil
}

// Delete hides the deal from all views immediately and restores it when the
// remote delete fails.
func (g *Gate) Delete(ctx context.Context, id string) (err error) {
	before, ok := g.store.Get(id)
	if !ok {
		return pipeline.E(pipeline.KindNotFound, "deal %q not found", id)
	}
	t, err := g.begin(id, TaskDelete, before)
	if err != nil {
		return err
	}
	defer func() { g.finish(t, err) }()

	if _, err = g.store.Remove(id); err != nil {
		return err
	}

	if err = g.remote.DeleteDeal(ctx, id); err != nil {
		g.store.Upsert(before)
		return err
	}
	return nil
}

// mergeRemote folds remote-assigned fields into the locally held record:
// the canonical id and any recalculated timestamps. Everything else stays
// as the caller wrote it. A nil local record (removed mid-flight) falls
// back to the remote's view.
func mergeRemote(local, confirmed *models.Deal) *models.Deal {
	if local == nil {
		return confirmed.Clone()
	}
	merged := local.Clone()
	if confirmed == nil {
		return merged
	}
	if confirmed.ID != "" {
		merged.ID = confirmed.ID
	}
	if !confirmed.CreatedAt.IsZero() {
		merged.CreatedAt = confirmed.CreatedAt
	}
	if !confirmed.UpdatedAt.IsZero() {
		merged.UpdatedAt = confirmed.UpdatedAt
	}
	return merged
}
