// Package archive retains uploaded execution archives for later replay, on
// the local filesystem or in an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
)

// Backend stores the raw bytes of an uploaded archive under a key. Retention
// is best-effort: ingestion proceeds even when the backend fails.
type Backend interface {
	Start(ctx context.Context) error
	Stop() error

	// Store persists one archive under the given key.
	Store(ctx context.Context, key string, data []byte) error
}

// NewBackend creates the configured retention backend, or nil when retention
// is disabled.
func NewBackend(
	log logrus.FieldLogger,
	cfg *config.ArchiveConfig,
) (Backend, error) {
	switch {
	case cfg.S3 != nil && cfg.S3.Enabled:
		return newS3Backend(log, cfg.S3)
	case cfg.Local != nil && cfg.Local.Enabled:
		if cfg.Local.Dir == "" {
			return nil, fmt.Errorf("local archive backend requires a dir")
		}

		return newLocalBackend(log, cfg.Local), nil
	default:
		return nil, nil
	}
}
