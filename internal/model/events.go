package model

import "time"

// DetectionEvent 一次文件到达 (create / moved-in)
type DetectionEvent struct {
	ID         string // ULID, shared with the resulting record
	SourcePath string // absolute path at detection time
	Timestamp  time.Time
}

// Outcome of isolating one detected file.
type Outcome string

const (
	OutcomeQuarantined   Outcome = "quarantined"
	OutcomeSourceMissing Outcome = "source_missing"
	OutcomeFailed        Outcome = "failed"
)

// QuarantineRecord is the result of QuarantineStore.Quarantine for one event.
type QuarantineRecord struct {
	EventID        string    `json:"event_id"`
	OriginalPath   string    `json:"original_path"`
	QuarantinePath string    `json:"quarantine_path,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Reason         string    `json:"reason,omitempty"` // only set for OutcomeFailed
	ContentType    string    `json:"content_type,omitempty"`
	Masquerade     bool      `json:"masquerade,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Quarantined reports whether the file was moved into quarantine.
func (r QuarantineRecord) Quarantined() bool {
	return r.Outcome == OutcomeQuarantined
}

// Notice 发给外部订阅者 (UI) 的消息, 无论隔离结果如何都会发送
type Notice struct {
	Path string `json:"path"`
}
