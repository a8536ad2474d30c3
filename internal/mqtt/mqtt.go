// Package mqtt provides the feeder's MQTT transport with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/pet-feeder/internal/logic"
)

var (
	// ErrNotConnected is returned by Publish while the broker link is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrNoSchedule is returned for a payload without a "schedule" list.
	ErrNoSchedule = errors.New("mqtt: payload has no schedule list")
)

// Kind selects the topic a payload is published on.
type Kind string

const (
	KindStatus Kind = "status"
	KindSystem Kind = "system"
)

// System lifecycle messages, published retained on the system topic.
const (
	SystemOnline  = "ONLINE"
	SystemOffline = "OFFLINE"
)

// TopicRoot prefixes every per-device topic.
const TopicRoot = "petfeeder/devices"

// Topics are the per-device topic names.
type Topics struct {
	Status   string
	Schedule string
	System   string
}

// TopicsFor builds the topic set for a device.
func TopicsFor(deviceID string) Topics {
	base := TopicRoot + "/" + deviceID
	return Topics{
		Status:   base + "/status",
		Schedule: base + "/schedule_update",
		System:   base + "/system",
	}
}

// Topic returns the topic used for kind.
func (t Topics) Topic(kind Kind) (string, error) {
	switch kind {
	case KindStatus:
		return t.Status, nil
	case KindSystem:
		return t.System, nil
	default:
		return "", fmt.Errorf("unknown topic kind %q", kind)
	}
}

// Transport is the feeder's link to the remote controller.
type Transport interface {
	// IsConnected reports whether a publish can currently succeed.
	IsConnected() bool

	// Publish sends a pre-formatted payload on the topic for kind.
	// Bounded by the transport's publish timeout; never blocks indefinitely.
	Publish(kind Kind, payload []byte) error

	// PublishStatus formats and sends a status event.
	PublishStatus(ev logic.StatusEvent) error

	// ScheduleUpdates delivers raw schedule_update payloads.
	ScheduleUpdates() <-chan []byte

	// Close disconnects from the broker.
	Close() error
}

// StatusPayload is the JSON body of a status message.
type StatusPayload struct {
	FoodWeighted int    `json:"food_weighted"`
	WaterLevel   string `json:"water_level"`
	MainStock    string `json:"main_stock"`
	Timestamp    string `json:"timestamp"`
}

// TimestampUnknown is sent when the device has no time reference.
const TimestampUnknown = "unknown"

func level(present bool) string {
	if present {
		return string(logic.LevelOK)
	}
	return string(logic.LevelLow)
}

// FormatStatus creates the JSON payload for a status event.
func FormatStatus(ev logic.StatusEvent) ([]byte, error) {
	ts := TimestampUnknown
	if ev.ObservedAt.Known {
		ts = ev.ObservedAt.Time().Format(time.RFC3339)
	}
	return json.Marshal(StatusPayload{
		FoodWeighted: ev.WeightGrams,
		WaterLevel:   level(ev.WaterPresent),
		MainStock:    level(ev.StockPresent),
		Timestamp:    ts,
	})
}

// SchedulePayload is the JSON body of a schedule_update message.
type SchedulePayload struct {
	Schedule []ScheduleItem `json:"schedule"`
}

// ScheduleItem is one feeding time as sent by the controller.
type ScheduleItem struct {
	Time   string `json:"time"`
	Amount int    `json:"amount"`
}

// ParseSchedule decodes a schedule_update payload into candidate entries.
// Items that do not decode or whose time is not "HH:MM" are skipped and counted
// in malformed; range checks are left to the schedule table. A payload that is
// not an object with a "schedule" list is an error. An empty list is valid and
// clears the table.
func ParseSchedule(payload []byte) (entries []logic.Entry, malformed int, err error) {
	var p struct {
		Schedule *[]json.RawMessage `json:"schedule"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, 0, fmt.Errorf("decode schedule: %w", err)
	}
	if p.Schedule == nil {
		return nil, 0, ErrNoSchedule
	}
	entries = make([]logic.Entry, 0, len(*p.Schedule))
	for _, raw := range *p.Schedule {
		var item ScheduleItem
		if err := json.Unmarshal(raw, &item); err != nil {
			malformed++
			continue
		}
		hour, minute, ok := parseClock(item.Time)
		if !ok {
			malformed++
			continue
		}
		entries = append(entries, logic.Entry{Hour: hour, Minute: minute, Grams: item.Amount, LastFired: logic.NoDay})
	}
	return entries, malformed, nil
}

func parseClock(s string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil {
		return 0, 0, false
	}
	return hour, minute, true
}

// FormatSchedule encodes entries in the schedule_update format.
func FormatSchedule(entries []logic.Entry) ([]byte, error) {
	p := SchedulePayload{Schedule: make([]ScheduleItem, len(entries))}
	for i, e := range entries {
		p.Schedule[i] = ScheduleItem{Time: fmt.Sprintf("%02d:%02d", e.Hour, e.Minute), Amount: e.Grams}
	}
	return json.Marshal(p)
}
