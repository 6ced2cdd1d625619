// Package fulltext provides a disk-backed store of previously extracted
// paper full text. The reconciliation engine consults it when a paper
// carries no identifiers and the citation text yields nothing.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// DefaultMaxSize caps how much text a single read returns.
const DefaultMaxSize = 10 << 20

// Config holds store configuration.
type Config struct {
	// Dir is the directory holding one text file per paper.
	Dir string

	// MaxSize is the maximum bytes returned per paper. Default: 10MB.
	MaxSize int64
}

// Store reads and writes cached full text keyed by paper ID.
type Store struct {
	dir     string
	maxSize int64
	logger  zerolog.Logger
}

// NewStore creates a store over the given directory, creating it if needed.
func NewStore(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("fulltext: directory is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("fulltext: create directory: %w", err)
	}
	return &Store{
		dir:     cfg.Dir,
		maxSize: cfg.MaxSize,
		logger:  logger.With().Str("component", "fulltext").Logger(),
	}, nil
}

func (s *Store) path(paperID uuid.UUID) string {
	return filepath.Join(s.dir, paperID.String()+".txt")
}

// CachedFulltext returns the stored text for a paper, capped at MaxSize.
// Returns domain.ErrNotFound when nothing is stored.
func (s *Store) CachedFulltext(ctx context.Context, paperID uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(s.path(paperID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("fulltext: open %s: %w", paperID, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxSize))
	if err != nil {
		return "", fmt.Errorf("fulltext: read %s: %w", paperID, err)
	}
	return string(data), nil
}

// Put stores text for a paper, replacing any previous content. The write
// goes through a temp file so readers never observe a partial file.
func (s *Store) Put(ctx context.Context, paperID uuid.UUID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, paperID.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("fulltext: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("fulltext: write %s: %w", paperID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fulltext: close %s: %w", paperID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(paperID)); err != nil {
		return fmt.Errorf("fulltext: rename %s: %w", paperID, err)
	}
	return nil
}

// Delete removes the stored text for a paper. Deleting absent text is not
// an error.
func (s *Store) Delete(ctx context.Context, paperID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(paperID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fulltext: delete %s: %w", paperID, err)
	}
	return nil
}
