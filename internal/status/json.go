package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	DeviceID      string         `json:"device_id"`
	Display       []string       `json:"display"`
	Clock         string         `json:"clock"`
	ClockSynced   bool           `json:"clock_synced"`
	State         string         `json:"state"`
	Target        int            `json:"target_grams,omitempty"`
	Weight        int            `json:"weight_grams"`
	MainStock     string         `json:"main_stock"`
	WaterLevel    string         `json:"water_level"`
	Schedule      []ScheduleJSON `json:"schedule"`
	Buffer        BufferJSON     `json:"buffer"`
	Feeds         int            `json:"feeds"`
	LastFeed      *FeedJSON      `json:"last_feed,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Config        ConfigJSON     `json:"config"`
}

// ScheduleJSON is one feeding entry.
type ScheduleJSON struct {
	Time   string `json:"time"`
	Amount int    `json:"amount"`
}

// BufferJSON reports offline buffer usage.
type BufferJSON struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// FeedJSON describes the last completed session.
type FeedJSON struct {
	Target    int   `json:"target_grams"`
	Final     int   `json:"final_grams"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs            int64  `json:"tick_ms"`
	StatusIntervalMs  int64  `json:"status_interval_ms"`
	DispenseTimeoutMs int64  `json:"dispense_timeout_ms"`
	Timezone          string `json:"timezone"`
	HTTPAddr          string `json:"http_addr"`
}

// ClockString renders a reading as RFC3339 or "unknown".
func ClockString(snap Snapshot) string {
	if !snap.Clock.Known {
		return "unknown"
	}
	return snap.Clock.Time().Format(time.RFC3339)
}

func levelString(l string) string {
	if l == "" {
		return "unknown"
	}
	return l
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		DeviceID:      snap.Config.DeviceID,
		Display:       []string{snap.Display[0], snap.Display[1]},
		Clock:         ClockString(snap),
		ClockSynced:   snap.ClockSynced,
		State:         string(snap.Dispense.State),
		Target:        snap.Dispense.Target,
		Weight:        snap.Dispense.Weight,
		MainStock:     levelString(string(snap.Stock)),
		WaterLevel:    levelString(string(snap.Water)),
		Schedule:      make([]ScheduleJSON, 0, len(snap.Schedule)),
		Buffer:        BufferJSON{Depth: snap.BufferDepth, Capacity: snap.BufferCap},
		Feeds:         snap.Feeds,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:            snap.Config.TickMs,
			StatusIntervalMs:  snap.Config.StatusIntervalMs,
			DispenseTimeoutMs: snap.Config.DispenseTimeoutMs,
			Timezone:          snap.Config.Timezone,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}
	if inner.State == "" {
		inner.State = "UNKNOWN"
	}
	for _, e := range snap.Schedule {
		inner.Schedule = append(inner.Schedule, ScheduleJSON{
			Time:   fmt.Sprintf("%02d:%02d", e.Hour, e.Minute),
			Amount: e.Grams,
		})
	}
	if snap.LastFeed != nil {
		inner.LastFeed = &FeedJSON{
			Target:    snap.LastFeed.TargetGrams,
			Final:     snap.LastFeed.FinalWeight,
			ElapsedMs: snap.LastFeed.Elapsed.Milliseconds(),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
