package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
)

// Compile-time interface check.
var _ Backend = (*localBackend)(nil)

// localBackend writes archives under a directory on the local filesystem.
type localBackend struct {
	log logrus.FieldLogger
	cfg *config.LocalArchiveConfig
}

func newLocalBackend(
	log logrus.FieldLogger,
	cfg *config.LocalArchiveConfig,
) *localBackend {
	return &localBackend{
		log: log.WithField("component", "archive-local"),
		cfg: cfg,
	}
}

func (b *localBackend) Start(_ context.Context) error {
	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	b.log.WithField("dir", b.cfg.Dir).Info("Local archive retention enabled")

	return nil
}

func (b *localBackend) Stop() error {
	return nil
}

func (b *localBackend) Store(_ context.Context, key string, data []byte) error {
	path := filepath.Join(b.cfg.Dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating archive subdir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"key":  key,
		"size": len(data),
	}).Debug("Archive retained")

	return nil
}
