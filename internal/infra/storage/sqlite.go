package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"depth_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ domain.ResyncJournal = (*Storage)(nil)

// Storage persists the resync journal and the last known price limits.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path. An empty
// path selects the per-user default location.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		if dbPath, err = getDBPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	// Auto Migration
	if err := db.AutoMigrate(&domain.ResyncRecord{}, &domain.PriceLimitRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "DepthGo", "data", "depthgo.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Resync Journal
// ======================================================================================

// RecordResync appends one resync record.
func (s *Storage) RecordResync(rec domain.ResyncRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.db.Create(&rec).Error
}

// ListResyncs returns the most recent resyncs, newest first. An empty
// instrumentID lists every instrument.
func (s *Storage) ListResyncs(instrumentID string, limit int) ([]domain.ResyncRecord, error) {
	var records []domain.ResyncRecord
	q := s.db.Order("created_at desc, id desc")
	if instrumentID != "" {
		q = q.Where("instrument_id = ?", instrumentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// ResyncCounts returns the number of resyncs per reason since a point in time.
func (s *Storage) ResyncCounts(since time.Time) (map[string]int64, error) {
	var rows []struct {
		Reason string
		Count  int64
	}
	err := s.db.Model(&domain.ResyncRecord{}).
		Select("reason, count(*) as count").
		Where("created_at >= ?", since).
		Group("reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Reason] = r.Count
	}
	return result, nil
}

// ======================================================================================
// Price Limit Operations
// ======================================================================================

// SavePriceLimit creates or updates the last known limit of an instrument.
func (s *Storage) SavePriceLimit(ctx context.Context, l domain.PriceLimit) error {
	rec := domain.PriceLimitRecord{
		InstrumentID: l.InstrumentID,
		BuyLimit:     l.BuyLimit.String(),
		SellLimit:    l.SellLimit.String(),
		Enabled:      l.Enabled,
		AsOf:         l.AsOf,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// LoadPriceLimits returns every stored limit.
func (s *Storage) LoadPriceLimits() ([]domain.PriceLimit, error) {
	var records []domain.PriceLimitRecord
	if err := s.db.Order("instrument_id").Find(&records).Error; err != nil {
		return nil, err
	}

	limits := make([]domain.PriceLimit, 0, len(records))
	for _, r := range records {
		buy, err := decimal.NewFromString(r.BuyLimit)
		if err != nil {
			return nil, fmt.Errorf("stored buy limit for %s: %w", r.InstrumentID, err)
		}
		sell, err := decimal.NewFromString(r.SellLimit)
		if err != nil {
			return nil, fmt.Errorf("stored sell limit for %s: %w", r.InstrumentID, err)
		}
		limits = append(limits, domain.PriceLimit{
			InstrumentID: r.InstrumentID,
			BuyLimit:     buy,
			SellLimit:    sell,
			Enabled:      r.Enabled,
			AsOf:         r.AsOf,
		})
	}
	return limits, nil
}
