package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MaxBackups is how many automatic backups are kept next to the database.
const MaxBackups = 10

// ErrBackupUnsupported is returned for in-memory databases.
var ErrBackupUnsupported = errors.New("backup not supported for in-memory database")

// BackupInfo describes one backup file.
type BackupInfo struct {
	CreatedAt time.Time
	Path      string
	Size      int64
}

func (s *SQLiteStorage) backupDir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "backups")
}

// Backup writes a consistent copy of the database into the backups
// directory and prunes old copies. It returns the new file's path.
func (s *SQLiteStorage) Backup(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if s.dbPath == ":memory:" {
		return "", ErrBackupUnsupported
	}

	dir := s.backupDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("budget-%s.db", time.Now().Format("20060102-150405.000"))
	dest, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup path: %w", err)
	}

	// VACUUM INTO takes a literal, so the path is checked instead of bound.
	if strings.ContainsAny(dest, "'\";") {
		return "", fmt.Errorf("invalid backup path: contains forbidden characters")
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	slog.Info("Created database backup", "path", dest)

	if err := s.pruneBackups(); err != nil {
		slog.Warn("Failed to prune old backups", "error", err)
	}
	return dest, nil
}

// ListBackups returns existing backups, newest first.
func (s *SQLiteStorage) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "budget-") || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(s.backupDir(), entry.Name()),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	// Names embed the timestamp, so lexical order is chronological.
	sort.Slice(backups, func(i, j int) bool { return backups[i].Path > backups[j].Path })
	return backups, nil
}

func (s *SQLiteStorage) pruneBackups() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", backups[i].Path, err)
		}
	}
	return nil
}
