package library

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for presentation runs.
type Repository interface {
	Create(ctx context.Context, presentation *Presentation) error
	Get(ctx context.Context, id string) (*Presentation, error)
	List(ctx context.Context, limit int) ([]Presentation, error)
	UpdateStatus(ctx context.Context, id, phase, message string, at time.Time) error
	Complete(ctx context.Context, id string, outcome Outcome) error
	Fail(ctx context.Context, id string, errMessage string) error
	AddDebugFile(ctx context.Context, file *DebugFile) error
}

// Outcome is the payload stored when a run completes.
type Outcome struct {
	Slides       string
	Plan         string
	Research     string
	Warnings     string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	CompletedAt  time.Time
}

// GormRepository persists presentation runs using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

const defaultListLimit = 50

// Create inserts a new presentation row.
func (r *GormRepository) Create(ctx context.Context, presentation *Presentation) error {
	if presentation == nil {
		return eris.New("presentation is nil")
	}
	if strings.TrimSpace(presentation.ID) == "" {
		return eris.New("presentation id is required")
	}

	if err := r.db.WithContext(ctx).Create(presentation).Error; err != nil {
		r.logError(logrus.Fields{"presentation_id": presentation.ID}, err, "creating presentation")
		return eris.Wrapf(err, "creating presentation: %s", presentation.ID)
	}

	return nil
}

// Get returns the presentation with its status history and debug files, or nil when not found.
func (r *GormRepository) Get(ctx context.Context, id string) (*Presentation, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.New("presentation id is required")
	}

	var presentation Presentation
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("DebugFiles", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&presentation, "id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"presentation_id": trimmed}, err, "fetching presentation")
		return nil, eris.Wrapf(err, "fetching presentation: %s", trimmed)
	}

	return &presentation, nil
}

// List returns the most recent presentations, newest first, without their history.
func (r *GormRepository) List(ctx context.Context, limit int) ([]Presentation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var presentations []Presentation
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&presentations).Error; err != nil {
		r.logError(nil, err, "listing presentations")
		return nil, eris.Wrap(err, "listing presentations")
	}

	return presentations, nil
}

// UpdateStatus appends a status event and mirrors it onto the presentation row. Statuses
// arriving after the run finished are recorded as events only.
func (r *GormRepository) UpdateStatus(ctx context.Context, id, phase, message string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := StatusEvent{PresentationID: id, Phase: phase, Message: message, CreatedAt: at}
		if err := tx.Create(&event).Error; err != nil {
			return eris.Wrap(err, "inserting status event")
		}

		return tx.Model(&Presentation{}).
			Where("id = ? AND status NOT IN ?", id, []string{StatusCompleted, StatusFailed}).
			Updates(map[string]any{"status": phase, "status_description": message}).Error
	})
	if err != nil {
		r.logError(logrus.Fields{"presentation_id": id, "phase": phase}, err, "updating presentation status")
		return eris.Wrapf(err, "updating presentation status: %s", id)
	}

	return nil
}

// Complete stores the run's output and marks it completed.
func (r *GormRepository) Complete(ctx context.Context, id string, outcome Outcome) error {
	completedAt := outcome.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Model(&Presentation{}).Where("id = ?", id).Updates(map[string]any{
		"status":             StatusCompleted,
		"status_description": "Presentation generated successfully.",
		"slides":             outcome.Slides,
		"plan":               outcome.Plan,
		"research":           outcome.Research,
		"warnings":           outcome.Warnings,
		"input_tokens":       outcome.InputTokens,
		"output_tokens":      outcome.OutputTokens,
		"cost":               outcome.Cost,
		"completed_at":       completedAt,
	}).Error
	if err != nil {
		r.logError(logrus.Fields{"presentation_id": id}, err, "completing presentation")
		return eris.Wrapf(err, "completing presentation: %s", id)
	}

	return nil
}

// Fail marks the run failed with the given error text.
func (r *GormRepository) Fail(ctx context.Context, id string, errMessage string) error {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Model(&Presentation{}).Where("id = ?", id).Updates(map[string]any{
		"status":             StatusFailed,
		"status_description": errMessage,
		"error":              errMessage,
		"completed_at":       now,
	}).Error
	if err != nil {
		r.logError(logrus.Fields{"presentation_id": id}, err, "failing presentation")
		return eris.Wrapf(err, "failing presentation: %s", id)
	}

	return nil
}

// AddDebugFile records a debug artifact written for a run.
func (r *GormRepository) AddDebugFile(ctx context.Context, file *DebugFile) error {
	if file == nil {
		return eris.New("debug file is nil")
	}

	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		r.logError(logrus.Fields{"presentation_id": file.PresentationID}, err, "recording debug file")
		return eris.Wrapf(err, "recording debug file: %s", file.Filename)
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
