package timer

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the timer state shared by every consumer. ActiveLogID is 0 and
// StartTime nil when no log is active.
type Snapshot struct {
	IsRunning   bool
	ActiveLogID int64
	StartTime   *time.Time
	ElapsedTime int64
}

// Formatted renders ElapsedTime as HH:MM:SS
func (s Snapshot) Formatted() string {
	return FormatElapsed(s.ElapsedTime)
}

// consistent reports whether the running flag agrees with the anchor fields
func (s Snapshot) consistent() bool {
	if s.IsRunning {
		return s.ActiveLogID > 0 && s.StartTime != nil
	}
	return true
}

func (s Snapshot) clone() Snapshot {
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	return s
}

// persistedSnapshot is the on-disk form
type persistedSnapshot struct {
	IsRunning    bool    `json:"isRunning"`
	ActiveLogID  *int64  `json:"activeLogId"`
	StartTimeISO *string `json:"startTimeIso"`
	ElapsedTime  int64   `json:"elapsedTime"`
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	p := persistedSnapshot{
		IsRunning:   s.IsRunning,
		ElapsedTime: s.ElapsedTime,
	}
	if s.ActiveLogID > 0 {
		id := s.ActiveLogID
		p.ActiveLogID = &id
	}
	if s.StartTime != nil {
		iso := s.StartTime.UTC().Format(time.RFC3339Nano)
		p.StartTimeISO = &iso
	}
	return json.Marshal(p)
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var p persistedSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return Snapshot{}, fmt.Errorf("decoding timer snapshot: %w", err)
	}

	s := Snapshot{
		IsRunning:   p.IsRunning,
		ElapsedTime: p.ElapsedTime,
	}
	if p.ActiveLogID != nil {
		s.ActiveLogID = *p.ActiveLogID
	}
	if p.StartTimeISO != nil && *p.StartTimeISO != "" {
		t, err := time.Parse(time.RFC3339Nano, *p.StartTimeISO)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decoding timer start time: %w", err)
		}
		s.StartTime = &t
	}
	return s, nil
}
