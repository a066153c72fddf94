package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jask/olympiadbot/internal/database"
	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/logger"
)

// MaintenanceService houses destructive operator actions. Lock must be the
// same mutex the IngestService uses.
type MaintenanceService struct {
	DB        *sql.DB
	AssetsDir string
	Log       *logger.Logger
	Lock      *sync.Mutex

	mu sync.Mutex
}

func (s *MaintenanceService) writeLock() *sync.Mutex {
	if s.Lock != nil {
		return s.Lock
	}
	return &s.mu
}

// ClearAll wipes years, topics, tasks and their links. Registered callers
// are kept.
func (s *MaintenanceService) ClearAll(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	lock := s.writeLock()
	lock.Lock()
	defer lock.Unlock()

	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return repository.NewContent(tx).ClearAll(ctx)
	}); err != nil {
		return err
	}
	log := logger.OrNop(s.Log)
	if _, err := s.DB.ExecContext(ctx, "VACUUM"); err != nil {
		log.Warn("vacuum failed", "err", err)
	}
	log.Info("content cleared")
	return nil
}

// ClearAssets removes every regular file in the asset directory and keeps
// the directory itself. A missing directory counts as already empty.
func (s *MaintenanceService) ClearAssets(ctx context.Context) (int, error) {
	if s.AssetsDir == "" {
		return 0, fmt.Errorf("maintenance: asset dir not configured")
	}
	lock := s.writeLock()
	lock.Lock()
	defer lock.Unlock()

	entries, err := os.ReadDir(s.AssetsDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read asset dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.AssetsDir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	logger.OrNop(s.Log).Info("assets cleared", "removed", removed, "dir", s.AssetsDir)
	return removed, nil
}
