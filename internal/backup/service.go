package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

// filePrefix and fileLayout name snapshot files so their creation time can
// be read back without trusting file modification times.
const (
	filePrefix = "curation-snapshot-"
	fileSuffix = ".db"
	fileLayout = "20060102-150405.000000"
)

// Service snapshots one database file.
type Service struct {
	dbPath    string
	dir       string
	retention RetentionPolicy
	verify    bool
	now       func() time.Time
	logger    logrus.FieldLogger
}

// NewService validates cfg and creates the snapshot directory.
func NewService(cfg Config, logger logrus.FieldLogger) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup: snapshot directory is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: failed to create snapshot directory: %w", err)
	}

	return &Service{
		dbPath:    cfg.DBPath,
		dir:       cfg.Dir,
		retention: cfg.Retention.withDefaults(),
		verify:    cfg.Verify,
		now:       cfg.Now,
		logger:    logging.OrDiscard(logger).WithField("component", "backup"),
	}, nil
}

// BackupNow writes a new snapshot, verifies it when configured, and prunes
// old snapshots. A pruning failure is logged and does not fail the snapshot.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	started := time.Now()

	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("backup: database not found: %w", err)
	}

	path := filepath.Join(s.dir, filePrefix+s.now().UTC().Format(fileLayout)+fileSuffix)
	if err := snapshotSQLite(ctx, s.dbPath, path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to stat snapshot: %w", err)
	}

	result := &Result{Path: path, Size: info.Size()}
	if s.verify {
		if err := verifySnapshot(ctx, path); err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("backup: %w", err)
		}
		result.Verified = true
	}

	pruned, err := applyRetention(s.dir, s.retention, s.now())
	if err != nil {
		s.logger.WithError(err).Warn("failed to apply snapshot retention")
	}
	result.Pruned = pruned
	result.Duration = time.Since(started)

	s.logger.WithFields(logrus.Fields{
		"path":     result.Path,
		"size":     result.Size,
		"verified": result.Verified,
		"pruned":   result.Pruned,
		"duration": result.Duration,
	}).Info("snapshot written")
	return result, nil
}

// List returns the snapshots in the directory, newest first.
func (s *Service) List() ([]Snapshot, error) {
	return listSnapshots(s.dir)
}

// Restore replaces the database with snapshotPath. The database must not be
// open. The current file is preserved until the restore succeeds and is put
// back if it fails.
func (s *Service) Restore(ctx context.Context, snapshotPath string) error {
	if _, err := os.Stat(snapshotPath); err != nil {
		return fmt.Errorf("backup: snapshot not found: %w", err)
	}

	preRestore := s.dbPath + ".pre-restore"
	hadCurrent := false
	if _, err := os.Stat(s.dbPath); err == nil {
		if err := snapshotSQLite(ctx, s.dbPath, preRestore); err != nil {
			return fmt.Errorf("backup: failed to preserve current database: %w", err)
		}
		hadCurrent = true
		defer func() { _ = os.Remove(preRestore) }()
	}

	if err := copyVerified(ctx, snapshotPath, s.dbPath); err != nil {
		if !hadCurrent {
			return fmt.Errorf("backup: restore failed: %w", err)
		}
		if rbErr := copyVerified(ctx, preRestore, s.dbPath); rbErr != nil {
			return fmt.Errorf("backup: restore failed and previous database could not be put back: %w", errors.Join(err, rbErr))
		}
		return fmt.Errorf("backup: restore failed, previous database kept: %w", err)
	}

	s.logger.WithField("snapshot", snapshotPath).Info("database restored")
	return nil
}

// Usage returns the number of snapshots and their combined size in bytes.
func (s *Service) Usage() (int, int64, error) {
	snapshots, err := listSnapshots(s.dir)
	if err != nil {
		return 0, 0, err
	}
	total, err := diskUsage(s.dir)
	return len(snapshots), total, err
}
