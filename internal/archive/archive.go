// Package archive provides long-term snapshot archival beyond the
// persisted history prefix.
package archive

import (
	"context"
	"fmt"

	"tandem/collab/internal/config"
	"tandem/collab/internal/history"
)

// Archive stores complete snapshots for later retrieval. Archival is
// best-effort: the history service fires it asynchronously and failures
// only log.
type Archive interface {
	Store(ctx context.Context, snapshot history.Snapshot) error
	Load(ctx context.Context, snapshotID string) (history.Snapshot, error)
	List(ctx context.Context) ([]string, error)
}

// NewArchiveFromConfig creates an Archive for the configured backend.
// Backend "none" returns nil without error.
func NewArchiveFromConfig(cfg config.Config) (Archive, error) {
	switch cfg.ArchiveBackend {
	case "none", "":
		return nil, nil
	case "git":
		if cfg.ArchiveDir == "" {
			return nil, fmt.Errorf("git archive requires an archive dir")
		}
		return NewGitArchive(cfg.ArchiveDir, cfg.SessionID), nil
	case "object":
		return NewObjectArchive(ObjectConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			SessionID: cfg.SessionID,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", cfg.ArchiveBackend)
	}
}
