package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const iwOutput = `BSS 00:11:22:33:44:55(on wlan0)
	TSF: 1234 usec (0d, 00:00:00)
	freq: 2412
	signal: -71.00 dBm
	SSID: cafe
	DS Parameter set: channel 1
BSS aa:bb:cc:dd:ee:ff(on wlan0) -- associated
	freq: 2437
	signal: -40.00 dBm
	SSID: net1
	DS Parameter set: channel 6
BSS 10:20:30:40:50:60(on wlan0)
	signal: -55.00 dBm
	SSID:
`

func TestParseIW(t *testing.T) {
	aps, err := ParseIW([]byte(iwOutput))
	require.NoError(t, err)
	require.Len(t, aps, 3)

	assert.Equal(t, "00:11:22:33:44:55", aps[0].MAC())
	assert.Equal(t, -71, aps[0].RSSI)
	assert.Equal(t, "cafe", aps[0].SSID)
	assert.Equal(t, 1, aps[0].Channel)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", aps[1].MAC())
	assert.Equal(t, -40, aps[1].RSSI)
	assert.Equal(t, "net1", aps[1].SSID)

	assert.Equal(t, "", aps[2].SSID, "hidden network keeps empty SSID")
}

func TestParseIWBadMAC(t *testing.T) {
	_, err := ParseIW([]byte("BSS zz:zz(on wlan0)\n"))
	assert.Error(t, err)
}

func TestParseIWEmpty(t *testing.T) {
	aps, err := ParseIW(nil)
	require.NoError(t, err)
	assert.Empty(t, aps)
}

func TestCaptureSortsAndCaps(t *testing.T) {
	aps := []AccessPoint{{SSID: "a", RSSI: -80}, {SSID: "b", RSSI: -30}, {SSID: "c", RSSI: -60}}
	res := Capture(aps, 2)

	assert.Equal(t, 3, res.Total)
	require.Len(t, res.APs, 2)
	assert.Equal(t, "b", res.APs[0].SSID)
	assert.Equal(t, "c", res.APs[1].SSID)
	assert.Equal(t, "a", aps[0].SSID, "input must not be reordered")
}

func TestCommandScanner(t *testing.T) {
	s, err := NewCommandScanner(`iw dev "wlan 0" scan`, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"iw", "dev", "wlan 0", "scan"}, s.argv)

	s.run = func(_ context.Context, argv []string) ([]byte, error) {
		return []byte(iwOutput), nil
	}
	res, err := s.Scan(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.APs, 1)
	assert.Equal(t, "net1", res.APs[0].SSID)
}

func TestCommandScannerFailure(t *testing.T) {
	s, err := NewCommandScanner(DefaultCommand, 0, zap.NewNop())
	require.NoError(t, err)
	s.run = func(context.Context, []string) ([]byte, error) {
		return nil, errors.New("device busy")
	}

	_, err = s.Scan(context.Background(), 10)
	assert.ErrorIs(t, err, ErrScan)
}

func TestNewCommandScannerEmpty(t *testing.T) {
	_, err := NewCommandScanner("   ", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestFakeScannerSequence(t *testing.T) {
	f := &FakeScanner{Results: []Result{
		{APs: []AccessPoint{{SSID: "first"}}},
		{APs: []AccessPoint{{SSID: "second"}}},
	}}

	r, _ := f.Scan(context.Background(), 10)
	assert.Equal(t, "first", r.APs[0].SSID)
	r, _ = f.Scan(context.Background(), 10)
	assert.Equal(t, "second", r.APs[0].SSID)
	r, _ = f.Scan(context.Background(), 10)
	assert.Equal(t, "second", r.APs[0].SSID, "last result repeats")
	assert.Equal(t, 3, f.Calls)
}

func TestReport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Report(zap.New(core), []AccessPoint{{BSSID: []byte{1, 2, 3, 4, 5, 6}, SSID: "net1", RSSI: -40}})

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[1]
	assert.Equal(t, "net1", entry.ContextMap()["ssid"])
	assert.Equal(t, "01:02:03:04:05:06", entry.ContextMap()["mac"])

	core, logs = observer.New(zap.InfoLevel)
	Report(zap.New(core), nil)
	assert.Equal(t, 1, logs.FilterMessage("no APs found in the latest scan").Len())
}
