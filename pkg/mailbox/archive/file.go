package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// FileSink archives messages as JSON files under
// <dir>/<category>/<yyyy-mm>/<id>.json.
type FileSink struct {
	dir    string
	pretty bool
	now    func() time.Time
	logger *slog.Logger
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string, pretty bool) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSink{
		dir:    dir,
		pretty: pretty,
		now:    time.Now,
		logger: slog.Default().With("component", "mailbox.archive.file"),
	}, nil
}

// Path returns the file a message is archived to.
func (s *FileSink) Path(msg mailbox.Message, category string) (string, error) {
	name, err := objectName(msg.ID)
	if err != nil {
		return "", err
	}
	cat, err := pathElement(category)
	if err != nil {
		return "", fmt.Errorf("invalid category %q", category)
	}
	month := msg.Timestamp.UTC().Format("2006-01")
	return filepath.Join(s.dir, cat, month, name), nil
}

// Archive implements mailbox.ArchiveSink. The document is written to a
// temporary file, synced and renamed into place.
func (s *FileSink) Archive(ctx context.Context, msg mailbox.Message, category string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.Path(msg, category)
	if err != nil {
		return err
	}
	data, err := encode(NewRecord(msg, category, s.now()), s.pretty)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move archive file into place: %w", err)
	}

	s.logger.Debug("message archived", "message_id", msg.ID, "category", category, "path", path)
	return nil
}
