package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/scan-node/internal/scan"
)

var scanned = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(ssids ...string) Record {
	var aps []scan.AccessPoint
	for i, s := range ssids {
		aps = append(aps, scan.AccessPoint{BSSID: []byte{0, 0, 0, 0, 0, byte(i)}, SSID: s, RSSI: -40 - i})
	}
	return NewRecord(scan.Result{APs: aps, Total: len(aps)}, scanned)
}

func TestPayloadStoreEmpty(t *testing.T) {
	ps := NewPayloadStore(NewMemKV(), 10)
	rec, err := ps.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, rec.Owed())
}

func TestPayloadStoreRoundTrip(t *testing.T) {
	ps := NewPayloadStore(NewMemKV(), 10)
	want := sampleRecord("A", "B")
	require.NoError(t, ps.Save(want))

	got, err := ps.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
	assert.True(t, got.Owed())
}

func TestPayloadStoreSaveIdempotent(t *testing.T) {
	kv := NewMemKV()
	ps := NewPayloadStore(kv, 10)
	rec := sampleRecord("A")

	require.NoError(t, ps.Save(rec))
	first, _ := kv.Raw(keyPayload)
	require.NoError(t, ps.Save(rec))
	second, _ := kv.Raw(keyPayload)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, kv.Keys())
}

func TestPayloadStoreSingleSlot(t *testing.T) {
	kv := NewMemKV()
	ps := NewPayloadStore(kv, 10)

	for _, ssid := range []string{"A", "B", "C"} {
		require.NoError(t, ps.Save(sampleRecord(ssid)))
		assert.Equal(t, 1, kv.Keys())
	}
	require.NoError(t, ps.ErasePayload())
	assert.Equal(t, 0, kv.Keys())
	require.NoError(t, ps.Save(sampleRecord("D")))
	assert.Equal(t, 1, kv.Keys())

	got, err := ps.Load()
	require.NoError(t, err)
	assert.Equal(t, "D", got.Results[0].SSID)
}

func TestPayloadStoreRejectsOversize(t *testing.T) {
	ps := NewPayloadStore(NewMemKV(), 1)
	err := ps.Save(sampleRecord("A", "B"))
	assert.ErrorIs(t, err, ErrStore)
}

func TestPayloadStoreCorruptBlob(t *testing.T) {
	kv := NewMemKV()
	require.NoError(t, kv.Set(keyPayload, []byte("{not json")))

	_, err := NewPayloadStore(kv, 10).Load()
	assert.ErrorIs(t, err, ErrStore)
}

func TestPayloadStoreBackendFailure(t *testing.T) {
	kv := NewMemKV()
	kv.GetError = errors.Join(ErrStore, errors.New("flash unavailable"))

	rec, err := NewPayloadStore(kv, 10).Load()
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrStore)
}

func TestEraseAllWipesCounters(t *testing.T) {
	kv := NewMemKV()
	ps := NewPayloadStore(kv, 10)
	c := NewCounters(kv)

	require.NoError(t, ps.Save(sampleRecord("A", "B")))
	_, err := c.NextDevNonce()
	require.NoError(t, err)
	require.Equal(t, 2, kv.Keys())

	require.NoError(t, ps.EraseAll())
	assert.Equal(t, 0, kv.Keys())
	rec, err := ps.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCountersMonotonic(t *testing.T) {
	kv := NewMemKV()
	c := NewCounters(kv)

	var last uint16
	for i := 0; i < 5; i++ {
		n, err := c.NextDevNonce()
		require.NoError(t, err)
		assert.Greater(t, n, last)
		last = n
	}

	again := NewCounters(kv)
	n, err := again.NextDevNonce()
	require.NoError(t, err)
	assert.Equal(t, uint16(6), n, "counter continues across instances")
}

func TestCountersBadBlob(t *testing.T) {
	kv := NewMemKV()
	require.NoError(t, kv.Set(keyDevNonce, []byte{1, 2, 3}))
	_, err := NewCounters(kv).NextDevNonce()
	assert.ErrorIs(t, err, ErrStore)
}
