// Package storage provides the durable key->JSON-blob stores backing local
// configuration (stage topology, custom fields) and deal snapshots. No
// schema versioning: latest wins on read.
package storage

import "errors"

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store is a flat key to JSON blob mapping.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}
