package library

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"deckforge/app/internal/deck"
)

// statusRecorder persists every status a run emits. Storage failures are logged and never
// interrupt the run.
type statusRecorder struct {
	repo           Repository
	presentationID string
	logger         *logrus.Logger
}

func (r *statusRecorder) Observe(ctx context.Context, status deck.Status) {
	err := r.repo.UpdateStatus(context.WithoutCancel(ctx), r.presentationID, string(status.Phase), status.Message, status.Time)
	if err != nil && r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"presentation_id": r.presentationID,
			"phase":           status.Phase,
			"error":           err.Error(),
		}).Warn("recording presentation status")
	}
}

// debugRecorder writes artifacts through sink and indexes each file against the run.
type debugRecorder struct {
	sink           deck.DebugSink
	repo           Repository
	presentationID string
	logger         *logrus.Logger
}

func (r *debugRecorder) Record(ctx context.Context, artifact deck.DebugArtifact) (string, error) {
	location, err := r.sink.Record(ctx, artifact)
	if err != nil {
		return "", err
	}

	file := &DebugFile{
		PresentationID: r.presentationID,
		Filename:       filepath.Base(location),
		Path:           location,
		Context:        artifact.Context,
		Error:          artifact.Error,
		Size:           len(artifact.Response),
	}
	if err := r.repo.AddDebugFile(context.WithoutCancel(ctx), file); err != nil && r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"presentation_id": r.presentationID,
			"file":            file.Filename,
			"error":           err.Error(),
		}).Warn("indexing debug file")
	}

	return location, nil
}
