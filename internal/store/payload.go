package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/scan-node/internal/scan"
)

// Keys inside the namespace.
const (
	keyPayload  = "payload"
	keyDevNonce = "dev_nonce"
)

// Record is the single pending payload. At most one exists at a time
// because it always lives under the same key.
type Record struct {
	Results   []scan.AccessPoint `json:"scan_results"`
	Count     int                `json:"count"`
	Pending   bool               `json:"pending"`
	ScannedAt time.Time          `json:"scanned_at"`
}

// NewRecord builds a pending record from a scan.
func NewRecord(res scan.Result, at time.Time) Record {
	return Record{
		Results:   res.APs,
		Count:     len(res.APs),
		Pending:   true,
		ScannedAt: at.UTC(),
	}
}

// Owed reports whether the record still has to be delivered.
func (r *Record) Owed() bool {
	return r != nil && r.Pending && len(r.Results) > 0
}

// PayloadStore is the single-slot pending payload buffer.
type PayloadStore struct {
	kv         KV
	maxResults int
}

// NewPayloadStore wraps kv. Records holding more than maxResults access
// points are rejected by Save.
func NewPayloadStore(kv KV, maxResults int) *PayloadStore {
	return &PayloadStore{kv: kv, maxResults: maxResults}
}

// Load returns the stored record, or nil when none exists.
// Backend and decode failures wrap ErrStore.
func (s *PayloadStore) Load() (*Record, error) {
	data, err := s.kv.Get(keyPayload)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storeErr("decode", keyPayload, err)
	}
	return &rec, nil
}

// Save persists rec, replacing any previous record. Saving identical
// content twice leaves identical bytes behind.
func (s *PayloadStore) Save(rec Record) error {
	if rec.Count < 0 || rec.Count > s.maxResults || len(rec.Results) > s.maxResults {
		return fmt.Errorf("%w: record holds %d results, max %d", ErrStore, len(rec.Results), s.maxResults)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return storeErr("encode", keyPayload, err)
	}
	return s.kv.Set(keyPayload, data)
}

// ErasePayload removes the record after confirmed delivery.
func (s *PayloadStore) ErasePayload() error {
	return s.kv.Erase(keyPayload)
}

// EraseAll wipes the payload and every cached counter.
func (s *PayloadStore) EraseAll() error {
	return s.kv.EraseAll()
}

// Counters hands out persisted LoRaWAN join counters.
type Counters struct {
	kv KV
}

// NewCounters wraps kv.
func NewCounters(kv KV) *Counters {
	return &Counters{kv: kv}
}

// NextDevNonce returns a DevNonce never handed out before on this store.
// The new value is persisted before it is returned.
func (c *Counters) NextDevNonce() (uint16, error) {
	var cur uint16
	data, err := c.kv.Get(keyDevNonce)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	case len(data) != 2:
		return 0, storeErr("decode", keyDevNonce, fmt.Errorf("want 2 bytes, got %d", len(data)))
	default:
		cur = binary.BigEndian.Uint16(data)
	}

	next := cur + 1
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, next)
	if err := c.kv.Set(keyDevNonce, buf); err != nil {
		return 0, err
	}
	return next, nil
}
