package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string         `json:"state"`
	Intent        string         `json:"intent,omitempty"`
	WakeCause     string         `json:"wake_cause"`
	Joined        bool           `json:"joined"`
	Pending       bool           `json:"pending"`
	Delivered     int            `json:"delivered"`
	Countdown     int            `json:"countdown_remaining"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	LatestScan    []APJSON       `json:"latest_scan"`
	History       []ActivityJSON `json:"history"`
	Dropped       int            `json:"history_dropped"`
	Config        ConfigJSON     `json:"config"`
}

// APJSON is the JSON representation of one access point.
type APJSON struct {
	MAC  string `json:"mac"`
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
}

// ActivityJSON is the JSON representation of one history entry.
type ActivityJSON struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	IdleTicks  int    `json:"idle_ticks"`
	TickMs     int64  `json:"tick_ms"`
	SleepMs    int64  `json:"sleep_ms"`
	MaxResults int    `json:"max_results"`
	Broker     string `json:"broker"`
	GatewayID  string `json:"gateway_id"`
	Store      string `json:"store"`
	HTTPAddr   string `json:"http_addr"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		State:         orUnknown(snap.State),
		Intent:        snap.Intent,
		WakeCause:     orUnknown(snap.WakeCause),
		Joined:        snap.Joined,
		Pending:       snap.Pending,
		Delivered:     snap.Delivered,
		Countdown:     snap.CountdownRemaining,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LatestScan:    []APJSON{},
		History:       []ActivityJSON{},
		Dropped:       snap.HistoryDropped,
		Config: ConfigJSON{
			IdleTicks:  snap.Config.IdleTicks,
			TickMs:     snap.Config.TickMs,
			SleepMs:    snap.Config.SleepMs,
			MaxResults: snap.Config.MaxResults,
			Broker:     snap.Config.Broker,
			GatewayID:  snap.Config.GatewayID,
			Store:      snap.Config.Store,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
	for _, ap := range snap.LatestScan {
		inner.LatestScan = append(inner.LatestScan, APJSON{MAC: ap.MAC(), SSID: ap.SSID, RSSI: ap.RSSI})
	}
	for _, a := range snap.History {
		inner.History = append(inner.History, ActivityJSON{
			Timestamp: a.Time.UTC().Format(time.RFC3339),
			Kind:      a.Kind,
			Detail:    a.Detail,
		})
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
