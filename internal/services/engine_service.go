// Package services exposes the caller-facing API of the pipeline engine.
// Every method takes the tenant id explicitly; nothing below the HTTP layer
// reads tenant state ambiently.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pipecrm/internal/models"
	"pipecrm/internal/pipeline"
	"pipecrm/internal/realtime"
	"pipecrm/internal/schema"
	"pipecrm/internal/storage"
	"pipecrm/internal/syncer"
)

// Storage keys, namespaced per tenant as "<tenant>/<key>".
const (
	keyStages   = "stages"
	keyFields   = "fields"
	keySnapshot = "deals_snapshot"
)

// engine bundles the per-tenant state: the local store, its schema, and the
// sync gate writing through to the remote system.
type engine struct {
	store  *pipeline.Store
	schema *schema.Registry
	gate   *syncer.Gate
	stop   func()
}

type EngineService struct {
	remote syncer.Remote
	blobs  storage.Store
	hub    *realtime.Hub

	mu      sync.Mutex
	engines map[string]*engine
}

func NewEngineService(remote syncer.Remote, blobs storage.Store, hub *realtime.Hub) *EngineService {
	return &EngineService{
		remote:  remote,
		blobs:   blobs,
		hub:     hub,
		engines: make(map[string]*engine),
	}
}

// Close stops the event forwarders of every tenant engine.
func (s *EngineService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eng := range s.engines {
		eng.stop()
	}
	s.engines = make(map[string]*engine)
}

func blobKey(tenantID, name string) string { return tenantID + "/" + name }

// engine returns the tenant's engine, hydrating it from durable storage on
// first use.
func (s *EngineService) engine(tenantID string) (*engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[tenantID]; ok {
		return eng, nil
	}

	stages := pipeline.DefaultStages()
	if raw, err := s.blobs.Get(blobKey(tenantID, keyStages)); err == nil {
		var loaded []models.Stage
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return nil, fmt.Errorf("decode stored stages: %w", err)
		}
		if len(loaded) > 0 {
			stages = loaded
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	store := pipeline.NewStore(pipeline.NewStageConfig(stages))
	registry := schema.NewRegistry()
	if raw, err := s.blobs.Get(blobKey(tenantID, keyFields)); err == nil {
		var defs []models.CustomFieldDefinition
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, fmt.Errorf("decode stored fields: %w", err)
		}
		registry.Load(defs)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if raw, err := s.blobs.Get(blobKey(tenantID, keySnapshot)); err == nil {
		var deals []models.Deal
		if err := json.Unmarshal(raw, &deals); err != nil {
			return nil, fmt.Errorf("decode deal snapshot: %w", err)
		}
		store.Replace(deals)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	eng := &engine{
		store:  store,
		schema: registry,
		gate:   syncer.NewGate(store, s.remote),
	}
	events, cancel := store.Subscribe(64)
	eng.stop = cancel
	go func() {
		for ev := range events {
			if s.hub != nil {
				s.hub.Broadcast(tenantID, ev)
			}
		}
	}()

	s.engines[tenantID] = eng
	return eng, nil
}

func (s *EngineService) persist(tenantID, name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.blobs.Put(blobKey(tenantID, name), raw); err != nil {
		return fmt.Errorf("persist %s: %w", name, err)
	}
	return nil
}

func (s *EngineService) persistSnapshot(tenantID string, eng *engine) error {
	return s.persist(tenantID, keySnapshot, eng.store.All())
}

// ---- deals ----

// CreateDeal validates and creates a deal through the optimistic protocol.
// The returned deal carries the canonical remote id.
func (s *EngineService) CreateDeal(ctx context.Context, tenantID string, deal *models.Deal) (*models.Deal, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	deal.Currency = strings.ToUpper(deal.Currency)
	deal.CreatedAt = now
	deal.UpdatedAt = now

	if err := eng.schema.Validate(deal); err != nil {
		return nil, err
	}
	if err := s.requireStage(eng, deal.StageID); err != nil {
		return nil, err
	}

	created, err := eng.gate.Create(ctx, deal)
	if err != nil {
		return nil, err
	}
	if err := s.persistSnapshot(tenantID, eng); err != nil {
		// The create is already committed locally and remotely; return the
		// record so callers do not retry it.
		return created, err
	}
	return created, nil
}

// EditDeal replaces a deal's editable fields.
func (s *EngineService) EditDeal(ctx context.Context, tenantID, id string, updated *models.Deal) (*models.Deal, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	updated.Currency = strings.ToUpper(updated.Currency)
	updated.UpdatedAt = time.Now()

	if err := eng.schema.Validate(updated); err != nil {
		return nil, err
	}
	if err := s.requireStage(eng, updated.StageID); err != nil {
		return nil, err
	}

	saved, err := eng.gate.Update(ctx, id, updated)
	if err != nil {
		return nil, err
	}
	if err := s.persistSnapshot(tenantID, eng); err != nil {
		return saved, err
	}
	return saved, nil
}

// MoveDealStage performs the optimistic stage transition.
func (s *EngineService) MoveDealStage(ctx context.Context, tenantID, id, stageID string) (*models.Deal, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	moved, err := eng.gate.Move(ctx, id, stageID)
	if err != nil {
		return nil, err
	}
	if err := s.persistSnapshot(tenantID, eng); err != nil {
		return moved, err
	}
	return moved, nil
}

// DeleteDeal removes a deal locally and remotely.
func (s *EngineService) DeleteDeal(ctx context.Context, tenantID, id string) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.gate.Delete(ctx, id); err != nil {
		return err
	}
	return s.persistSnapshot(tenantID, eng)
}

func (s *EngineService) GetDeal(tenantID, id string) (*models.Deal, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	d, ok := eng.store.Get(id)
	if !ok {
		return nil, pipeline.E(pipeline.KindNotFound, "deal %q not found", id)
	}
	return d, nil
}

// QueryDeals returns the filtered, sorted deal list.
func (s *EngineService) QueryDeals(tenantID string, filter pipeline.Filter, sortBy pipeline.Sort) ([]models.Deal, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	deals := pipeline.ApplyFilter(eng.store.All(), filter)
	pipeline.SortDeals(deals, sortBy)
	return deals, nil
}

// BoardView returns the stage-grouped projection in topology order, empty
// stages included.
func (s *EngineService) BoardView(tenantID string, filter pipeline.Filter) ([]pipeline.StageGroup, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	deals := pipeline.ApplyFilter(eng.store.All(), filter)
	return pipeline.GroupByStage(deals, eng.store.Stages()), nil
}

// RefreshFromRemote reloads the deal set from the system of record. When
// the remote is unreachable it serves the last durable snapshot instead and
// reports it as stale.
func (s *EngineService) RefreshFromRemote(ctx context.Context, tenantID string) (stale bool, err error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return false, err
	}
	// Replacing the deal set under a pending task would clobber its rollback
	// snapshot; callers retry once the in-flight operations resolve.
	if pending := eng.gate.Pending(); len(pending) > 0 {
		return false, pipeline.E(pipeline.KindOperationInProgress, "%d sync operation(s) pending; retry the refresh after they resolve", len(pending))
	}
	deals, err := s.remote.ListDeals(ctx)
	if err != nil {
		if raw, gerr := s.blobs.Get(blobKey(tenantID, keySnapshot)); gerr == nil {
			var cached []models.Deal
			if uerr := json.Unmarshal(raw, &cached); uerr == nil {
				eng.store.Replace(cached)
				return true, nil
			}
		}
		return false, err
	}
	eng.store.Replace(deals)
	return false, s.persistSnapshot(tenantID, eng)
}

// ---- stages ----

func (s *EngineService) ListStages(tenantID string) ([]models.Stage, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	return eng.store.Stages(), nil
}

func (s *EngineService) AddStage(tenantID string, stage models.Stage) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.store.AddStage(stage); err != nil {
		return err
	}
	return s.persist(tenantID, keyStages, eng.store.Stages())
}

func (s *EngineService) RenameStage(tenantID, id, label string) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.store.RenameStage(id, label); err != nil {
		return err
	}
	return s.persist(tenantID, keyStages, eng.store.Stages())
}

func (s *EngineService) ReorderStages(tenantID string, order []string) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.store.ReorderStages(order); err != nil {
		return err
	}
	return s.persist(tenantID, keyStages, eng.store.Stages())
}

// RemoveStage deletes a stage, reassigning its deals to reassignTo when the
// stage is occupied. The reassignment and the topology change commit
// together or not at all.
func (s *EngineService) RemoveStage(tenantID, id, reassignTo string) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.store.RemoveStage(id, reassignTo); err != nil {
		return err
	}
	if err := s.persist(tenantID, keyStages, eng.store.Stages()); err != nil {
		return err
	}
	return s.persistSnapshot(tenantID, eng)
}

// ---- custom fields ----

func (s *EngineService) ListFields(tenantID string) ([]models.CustomFieldDefinition, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	return eng.schema.Definitions(), nil
}

func (s *EngineService) RegisterCustomField(tenantID string, def models.CustomFieldDefinition) (models.CustomFieldDefinition, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return def, err
	}
	created, err := eng.schema.Register(def)
	if err != nil {
		return def, err
	}
	return created, s.persist(tenantID, keyFields, eng.schema.Definitions())
}

func (s *EngineService) RemoveCustomField(tenantID, id string) error {
	eng, err := s.engine(tenantID)
	if err != nil {
		return err
	}
	if err := eng.schema.Remove(id, eng.store.AnyFieldValue); err != nil {
		return err
	}
	return s.persist(tenantID, keyFields, eng.schema.Definitions())
}

// PendingTasks lists in-flight sync operations for the tenant.
func (s *EngineService) PendingTasks(tenantID string) ([]syncer.Task, error) {
	eng, err := s.engine(tenantID)
	if err != nil {
		return nil, err
	}
	return eng.gate.Pending(), nil
}

func (s *EngineService) requireStage(eng *engine, stageID string) error {
	if stageID == "" {
		return nil // caught by schema validation
	}
	for _, st := range eng.store.Stages() {
		if st.ID == stageID {
			return nil
		}
	}
	return pipeline.E(pipeline.KindInvalidStage, "stage %q is not in the pipeline", stageID)
}
