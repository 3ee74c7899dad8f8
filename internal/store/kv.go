// Package store persists the node's single pending payload and its LoRaWAN
// counters in a namespaced key-value store that survives sleep and reset.
package store

import (
	"errors"
	"fmt"
)

// DefaultNamespace matches the namespace the firmware has always used.
const DefaultNamespace = "wifi_scan"

var (
	// ErrNotFound is returned by Get when a key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrStore wraps backend failures (open, read, write, erase).
	ErrStore = errors.New("store error")
)

// KV is a namespaced blob store. Implementations must make Set atomic:
// a failed Set leaves the previous value intact.
type KV interface {
	// Get returns the blob for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set replaces the blob for key.
	Set(key string, blob []byte) error

	// Erase removes key. Erasing a missing key succeeds.
	Erase(key string) error

	// EraseAll removes every key in the namespace. Succeeds when empty.
	EraseAll() error

	// Close releases backend resources.
	Close() error
}

func storeErr(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
	}
	return fmt.Errorf("%w: %s %q: %v", ErrStore, op, key, err)
}
