package shell

import (
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HistoryEntry is one submitted line. Branch records which handler the
// classifier selected, OK whether that handler succeeded.
type HistoryEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	Line   string
	Branch string
	OK     bool
}

// History persists submitted lines to a local sqlite database. Recording
// failures are logged and never surfaced to the prompt.
type History struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewHistory(dbFilePath string, log *zap.Logger) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilePath), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&HistoryEntry{}); err != nil {
		return nil, err
	}
	return &History{db: db, logger: log.Named("history")}, nil
}

// Record stores one entry. Best effort: a write failure only logs.
func (h *History) Record(line, branch string, ok bool) {
	if h == nil {
		return
	}
	entry := HistoryEntry{Line: line, Branch: branch, OK: ok}
	if err := h.db.Create(&entry).Error; err != nil {
		h.logger.Warn("Failed to record history entry", zap.Error(err))
	}
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := h.db.Order("id desc").Limit(n).Find(&entries).Error
	return entries, err
}

func (h *History) Close() error {
	if h == nil {
		return nil
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
