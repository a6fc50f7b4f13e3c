package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/retry"
)

const (
	debugFilePrefix      = "presentation_debug_"
	debugTimestampLayout = "2006-01-02_15-04-05"
)

// DebugArtifact is a raw model response kept after a parse or validation failure.
type DebugArtifact struct {
	Context  string
	Error    string
	Response string
	Retry    retry.Config
	Time     time.Time
}

// DebugSink persists debug artifacts and returns where each one ended up.
// Pipeline correctness never depends on a sink being present or succeeding.
type DebugSink interface {
	Record(ctx context.Context, artifact DebugArtifact) (string, error)
}

// FileDebugSink writes each artifact to its own text file in Dir.
type FileDebugSink struct {
	Dir string
}

// NewFileDebugSink returns a sink rooted at dir.
func NewFileDebugSink(dir string) *FileDebugSink {
	return &FileDebugSink{Dir: dir}
}

// Record writes presentation_debug_<context>_<timestamp>.txt. A numeric suffix keeps
// artifacts from the same second apart.
func (s *FileDebugSink) Record(_ context.Context, artifact DebugArtifact) (string, error) {
	dir := strings.TrimSpace(s.Dir)
	if dir == "" {
		return "", eris.New("debug directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "creating debug directory %s", dir)
	}

	when := artifact.Time
	if when.IsZero() {
		when = time.Now()
	}

	base := fmt.Sprintf("%s%s_%s", debugFilePrefix, sanitizeContext(artifact.Context), when.Format(debugTimestampLayout))
	body := formatArtifact(artifact, when)

	for attempt := 0; attempt < 100; attempt++ {
		name := base + ".txt"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.txt", base, attempt+1)
		}
		path := filepath.Join(dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "creating debug file %s", path)
		}

		if _, err := file.WriteString(body); err != nil {
			_ = file.Close()
			return "", eris.Wrapf(err, "writing debug file %s", path)
		}
		if err := file.Close(); err != nil {
			return "", eris.Wrapf(err, "closing debug file %s", path)
		}

		return path, nil
	}

	return "", eris.Errorf("too many debug files named %s", base)
}

func formatArtifact(artifact DebugArtifact, when time.Time) string {
	retryJSON, _ := json.Marshal(map[string]any{
		"max_retries":         artifact.Retry.MaxAttempts,
		"retry_delay":         int64(artifact.Retry.BaseDelay / time.Second),
		"exponential_backoff": artifact.Retry.Exponential,
	})

	var b strings.Builder
	b.WriteString("=== PRESENTATION DEBUG LOG ===\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", when.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Context: %s\n", artifact.Context)
	if artifact.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", artifact.Error)
	}
	fmt.Fprintf(&b, "Response Length: %d\n", len(artifact.Response))
	fmt.Fprintf(&b, "Retry Configuration: %s\n", retryJSON)
	b.WriteString("=== RAW RESPONSE ===\n")
	b.WriteString(artifact.Response)
	b.WriteString("\n=== END RESPONSE ===\n")
	return b.String()
}

func sanitizeContext(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, value)
}

// CleanupDebugFiles removes debug artifacts in dir last modified more than olderThan ago and
// returns how many were deleted. A missing directory is not an error.
func CleanupDebugFiles(dir string, olderThan time.Duration, now time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, debugFilePrefix+"*.txt"))
	if err != nil {
		return 0, eris.Wrapf(err, "listing debug files in %s", dir)
	}

	cutoff := now.Add(-olderThan)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, eris.Wrapf(err, "removing debug file %s", path)
		}
		removed++
	}

	return removed, nil
}

// runSink stamps artifacts with the retry configuration of the run that produced them.
type runSink struct {
	next  DebugSink
	retry retry.Config
}

func (r *runSink) Record(ctx context.Context, artifact DebugArtifact) (string, error) {
	artifact.Retry = r.retry
	return r.next.Record(ctx, artifact)
}

// recordDebug stores a failed response. Sink failures are logged and otherwise ignored.
func recordDebug(ctx context.Context, sink DebugSink, logger *logrus.Logger, contextName, response, errMessage string) string {
	if sink == nil {
		return ""
	}

	location, err := sink.Record(ctx, DebugArtifact{
		Context:  contextName,
		Error:    errMessage,
		Response: response,
		Time:     time.Now(),
	})
	if err != nil {
		logError(logger, logrus.Fields{"debug_context": contextName}, err, "saving debug artifact")
		return ""
	}
	return location
}
