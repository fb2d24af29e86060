package syncer

import (
	"time"

	"pipecrm/internal/models"
)

// TaskKind is the remote operation an in-flight task performs.
type TaskKind string

const (
	TaskCreate TaskKind = "create"
	TaskUpdate TaskKind = "update"
	TaskMove   TaskKind = "move"
	TaskDelete TaskKind = "delete"
)

// TaskStatus tracks resolution of an optimistic operation.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Task is the bookkeeping record for one in-flight optimistic operation.
// Before holds the pre-operation snapshot used for rollback; nil for create.
type Task struct {
	DealID    string       `json:"deal_id"`
	Kind      TaskKind     `json:"kind"`
	Before    *models.Deal `json:"-"`
	Status    TaskStatus   `json:"status"`
	StartedAt time.Time    `json:"started_at"`
}
