package node

import (
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/scan-node/internal/scan"
	"github.com/sweeney/scan-node/internal/store"
)

// Uplink layout: one count byte, then per access point six BSSID bytes
// and one signed RSSI byte.
const (
	uplinkHeader = 1
	uplinkEntry  = 7
)

// MinMTU is the smallest MTU that can carry one access point.
const MinMTU = uplinkHeader + uplinkEntry

// UplinkCapacity is how many access points fit in one uplink of mtu bytes.
func UplinkCapacity(mtu int) int {
	n := (mtu - uplinkHeader) / uplinkEntry
	if n < 0 {
		return 0
	}
	if n > math.MaxUint8 {
		return math.MaxUint8
	}
	return n
}

// EncodeUplink packs the record's results, strongest first as stored.
// Scans are capped at UplinkCapacity, so a record never holds more than
// fits; anything beyond it is cut.
func EncodeUplink(rec store.Record, mtu int) []byte {
	n := min(len(rec.Results), UplinkCapacity(mtu))

	out := make([]byte, uplinkHeader, uplinkHeader+n*uplinkEntry)
	out[0] = byte(n)
	for _, ap := range rec.Results[:n] {
		var bssid [6]byte
		copy(bssid[:], ap.BSSID)
		out = append(out, bssid[:]...)
		out = append(out, byte(int8(clampRSSI(ap.RSSI))))
	}
	return out
}

// DecodeUplink is the inverse of EncodeUplink. SSIDs are not carried.
func DecodeUplink(b []byte) ([]scan.AccessPoint, error) {
	if len(b) < uplinkHeader {
		return nil, errors.New("empty uplink")
	}
	n := int(b[0])
	if len(b) != uplinkHeader+n*uplinkEntry {
		return nil, fmt.Errorf("uplink length %d does not match count %d", len(b), n)
	}
	aps := make([]scan.AccessPoint, n)
	for i := range aps {
		off := uplinkHeader + i*uplinkEntry
		aps[i] = scan.AccessPoint{
			BSSID: append([]byte(nil), b[off:off+6]...),
			RSSI:  int(int8(b[off+6])),
		}
	}
	return aps, nil
}

func clampRSSI(v int) int {
	if v < math.MinInt8 {
		return math.MinInt8
	}
	if v > math.MaxInt8 {
		return math.MaxInt8
	}
	return v
}
