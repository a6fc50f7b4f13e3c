// Package library stores presentation runs, their status history and debug artifacts.
package library

import "time"

// Status values owned by the library. Pipeline phases are stored as reported.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Presentation is one generation run persisted in the database. Slides, plan, research and
// warnings are stored as JSON documents.
type Presentation struct {
	ID                string `gorm:"primaryKey;size:36"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Title             string `gorm:"size:255;not null"`
	Message           string `gorm:"type:text;not null"`
	Status            string `gorm:"size:64;index:idx_presentations_status;not null"`
	StatusDescription string `gorm:"type:text"`
	Slides            string `gorm:"type:text"`
	Plan              string `gorm:"type:text"`
	Research          string `gorm:"type:text"`
	Warnings          string `gorm:"type:text"`
	Error             string `gorm:"type:text"`
	InputTokens       int64
	OutputTokens      int64
	Cost              float64
	CompletedAt       *time.Time

	Events     []StatusEvent `gorm:"foreignKey:PresentationID;constraint:OnDelete:CASCADE"`
	DebugFiles []DebugFile   `gorm:"foreignKey:PresentationID;constraint:OnDelete:CASCADE"`
}

// TableName defines the table name for the Presentation model.
func (Presentation) TableName() string {
	return "presentations"
}

// Finished reports whether the run reached a terminal status.
func (p *Presentation) Finished() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// StatusEvent is one status emitted during a run.
type StatusEvent struct {
	ID             uint   `gorm:"primaryKey"`
	PresentationID string `gorm:"size:36;index:idx_status_events_presentation;not null"`
	Phase          string `gorm:"size:64;not null"`
	Message        string `gorm:"type:text"`
	CreatedAt      time.Time
}

// TableName defines the table name for the StatusEvent model.
func (StatusEvent) TableName() string {
	return "status_events"
}

// DebugFile records a debug artifact written during a run.
type DebugFile struct {
	ID             uint   `gorm:"primaryKey"`
	PresentationID string `gorm:"size:36;index:idx_debug_files_presentation;not null"`
	Filename       string `gorm:"size:255"`
	Path           string `gorm:"type:text"`
	Context        string `gorm:"size:64"`
	Error          string `gorm:"type:text"`
	Size           int
	CreatedAt      time.Time
}

// TableName defines the table name for the DebugFile model.
func (DebugFile) TableName() string {
	return "debug_files"
}
