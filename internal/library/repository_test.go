package library

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"deckforge/app/internal/db"
)

func TestRepositoryCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)

	presentation := &Presentation{ID: "run-1", Title: "Quarterly Update", Message: "Revenue grew", Status: StatusPending}
	if err := repo.Create(ctx, presentation); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	stored, err := repo.Get(ctx, " run-1 ")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored == nil {
		t.Fatalf("expected presentation, got nil")
	}
	if stored.Title != "Quarterly Update" || stored.Status != StatusPending {
		t.Fatalf("unexpected presentation %+v", stored)
	}
}

func TestRepositoryGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)

	stored, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected nil for missing presentation, got %+v", stored)
	}

	if _, err := repo.Get(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank id")
	}
}

func TestRepositoryCreateRequiresID(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)

	if err := repo.Create(context.Background(), &Presentation{Title: "x"}); err == nil {
		t.Fatalf("expected error when id is missing")
	}
	if err := repo.Create(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil presentation")
	}
}

func TestRepositoryUpdateStatusRecordsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	createPresentation(t, repo, "run-2")

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.UpdateStatus(ctx, "run-2", "planning", "Analyzing...", at); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "run-2", "researching", "Researching...", at.Add(time.Second)); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	stored, err := repo.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if stored.Status != "researching" || stored.StatusDescription != "Researching..." {
		t.Fatalf("expected latest status to be mirrored, got %q/%q", stored.Status, stored.StatusDescription)
	}
	if len(stored.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(stored.Events))
	}
	if stored.Events[0].Phase != "planning" || stored.Events[1].Phase != "researching" {
		t.Fatalf("expected events in emission order, got %q then %q", stored.Events[0].Phase, stored.Events[1].Phase)
	}
}

func TestRepositoryCompleteKeepsTerminalStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	createPresentation(t, repo, "run-3")

	outcome := Outcome{Slides: `[{"type":"title"}]`, InputTokens: 10, OutputTokens: 5, Cost: 0.25}
	if err := repo.Complete(ctx, "run-3", outcome); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "run-3", "finalizing", "late status", time.Time{}); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	stored, err := repo.Get(ctx, "run-3")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if stored.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q", StatusCompleted, stored.Status)
	}
	if !stored.Finished() {
		t.Fatalf("expected completed presentation to be finished")
	}
	if stored.Slides != outcome.Slides || stored.InputTokens != 10 || stored.OutputTokens != 5 {
		t.Fatalf("unexpected stored outcome %+v", stored)
	}
	if stored.CompletedAt == nil {
		t.Fatalf("expected completion time to be set")
	}
	if len(stored.Events) != 1 {
		t.Fatalf("expected late status to be kept as an event, got %d events", len(stored.Events))
	}
}

func TestRepositoryFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	createPresentation(t, repo, "run-4")

	if err := repo.Fail(ctx, "run-4", "invalid api key"); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}

	stored, err := repo.Get(ctx, "run-4")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != StatusFailed || stored.Error != "invalid api key" {
		t.Fatalf("unexpected failed presentation %+v", stored)
	}
}

func TestRepositoryListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		presentation := &Presentation{ID: id, Title: id, Message: "m", Status: StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(ctx, presentation); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	presentations, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(presentations) != 2 {
		t.Fatalf("expected 2 presentations, got %d", len(presentations))
	}
	if presentations[0].ID != "new" || presentations[1].ID != "mid" {
		t.Fatalf("expected newest first, got %q, %q", presentations[0].ID, presentations[1].ID)
	}
}

func TestRepositoryAddDebugFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	createPresentation(t, repo, "run-5")

	file := &DebugFile{PresentationID: "run-5", Filename: "presentation_debug_x.txt", Context: "validation_failed", Size: 12}
	if err := repo.AddDebugFile(ctx, file); err != nil {
		t.Fatalf("AddDebugFile returned error: %v", err)
	}

	stored, err := repo.Get(ctx, "run-5")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(stored.DebugFiles) != 1 || stored.DebugFiles[0].Context != "validation_failed" {
		t.Fatalf("unexpected debug files %+v", stored.DebugFiles)
	}
}

func TestNewRepositoryRequiresDB(t *testing.T) {
	t.Parallel()

	if _, err := NewRepository(nil, nil); err == nil {
		t.Fatalf("expected error when db is nil")
	}
}

func createPresentation(t *testing.T, repo *GormRepository, id string) {
	t.Helper()

	presentation := &Presentation{ID: id, Title: "Deck " + id, Message: "message", Status: StatusPending}
	if err := repo.Create(context.Background(), presentation); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func setupRepository(t *testing.T) *GormRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := silentLogger()

	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	return repo
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
