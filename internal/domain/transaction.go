package domain

import (
	"time"
)

// TranslationRecord is one successful recognition event. Records are
// append-only.
type TranslationRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `json:"timestamp" gorm:"not null;index:idx_timestamp"`
	Text           string    `json:"text_translated" gorm:"column:text_translated;not null"`
	Confidence     float64   `json:"confidence" gorm:"not null"`
	ResponseTimeMs int64     `json:"response_time_ms" gorm:"not null"`
	SessionID      *string   `json:"session_id,omitempty" gorm:"index:idx_session"`
	UserID         *string   `json:"user_id,omitempty"`
}

// TableName pins the table name used by the structured sink.
func (TranslationRecord) TableName() string {
	return "translations"
}

// DefaultLedgerLimit caps queries that do not set a limit.
const DefaultLedgerLimit = 100

// LedgerFilter narrows a ledger query. Zero values mean "no filter".
type LedgerFilter struct {
	Limit     int
	SessionID string
	Start     *time.Time
	End       *time.Time
}

// LedgerStats aggregates the whole ledger.
type LedgerStats struct {
	TotalCount         int64              `json:"total_translations"`
	MeanConfidence     float64            `json:"avg_confidence"`
	MeanResponseTimeMs float64            `json:"avg_response_time_ms"`
	LastRecord         *TranslationRecord `json:"last_translation"`
}

// OptionalString returns nil for an empty string.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
