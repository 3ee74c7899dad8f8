// Package scan discovers nearby Wi-Fi access points.
// The real implementation shells out to a scan tool (iw by default).
// The fake implementation allows testing without a radio.
package scan

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// ErrScan is returned when a scan cannot produce results.
// It is transient: the next wake takes the fresh-scan path again.
var ErrScan = errors.New("scan failed")

// AccessPoint is one discovered peer.
type AccessPoint struct {
	BSSID   []byte `json:"bssid"`
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel,omitempty"`
}

// MAC formats the BSSID as aa:bb:cc:dd:ee:ff.
func (a AccessPoint) MAC() string {
	return net.HardwareAddr(a.BSSID).String()
}

// Result is the outcome of one scan.
type Result struct {
	// APs holds at most the requested number of access points, strongest first.
	APs []AccessPoint
	// Total is how many access points the radio reported before capping.
	Total int
}

// Scanner performs a blocking scan.
type Scanner interface {
	// Scan captures up to max access points.
	// Errors wrap ErrScan.
	Scan(ctx context.Context, max int) (Result, error)
}

// Report logs scan results one access point at a time.
func Report(logger *zap.Logger, aps []AccessPoint) {
	if len(aps) == 0 {
		logger.Info("no APs found in the latest scan")
		return
	}
	logger.Info("latest scan results", zap.Int("count", len(aps)))
	for i, ap := range aps {
		logger.Info(fmt.Sprintf("ap %d", i),
			zap.String("ssid", ap.SSID),
			zap.Int("rssi", ap.RSSI),
			zap.String("mac", ap.MAC()),
		)
	}
}
