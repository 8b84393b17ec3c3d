// Package entrycache keeps the last fetched copy of each month so the
// calendar can still be shown when the backend is unreachable.
package entrycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/datetally/internal/domain"
)

type Cache interface {
	ReplaceMonth(ctx context.Context, owner string, year int, month time.Month, entries []domain.DateEntry) error
	Month(ctx context.Context, owner string, year int, month time.Month) ([]domain.DateEntry, time.Time, bool, error)
	Forget(ctx context.Context, owner string) error
}

type cachedEntry struct {
	Owner string `gorm:"primaryKey;size:320"`
	Date  string `gorm:"primaryKey;size:10"`
	Month string `gorm:"index;size:7"`
	Count int
}

func (cachedEntry) TableName() string { return "cached_entries" }

type cachedMonth struct {
	Owner     string `gorm:"primaryKey;size:320"`
	Month     string `gorm:"primaryKey;size:7"`
	FetchedAt time.Time
}

func (cachedMonth) TableName() string { return "cached_months" }

type GormCache struct {
	db  *gorm.DB
	now func() time.Time
}

// Open picks the driver from dsn: postgres URLs and key=value strings go to
// Postgres, anything else is a SQLite path or URI.
func Open(dsn string) (*GormCache, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open entry cache: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*GormCache, error) {
	if err := db.AutoMigrate(&cachedEntry{}, &cachedMonth{}); err != nil {
		return nil, fmt.Errorf("migrate entry cache: %w", err)
	}
	return &GormCache{db: db, now: time.Now}, nil
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ReplaceMonth stores entries as the complete content of the month.
func (c *GormCache) ReplaceMonth(ctx context.Context, owner string, year int, month time.Month, entries []domain.DateEntry) error {
	key := monthKey(year, month)
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ? AND month = ?", owner, key).Delete(&cachedEntry{}).Error; err != nil {
			return err
		}
		rows := make([]cachedEntry, 0, len(entries))
		for _, e := range entries {
			if !strings.HasPrefix(e.Date, key+"-") {
				continue
			}
			rows = append(rows, cachedEntry{Owner: owner, Date: e.Date, Month: key, Count: e.Count})
		}
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&cachedMonth{Owner: owner, Month: key, FetchedAt: c.now().UTC()}).Error
	})
}

// Month returns the cached entries and when they were fetched. ok is false
// when the month was never stored.
func (c *GormCache) Month(ctx context.Context, owner string, year int, month time.Month) ([]domain.DateEntry, time.Time, bool, error) {
	key := monthKey(year, month)
	db := c.db.WithContext(ctx)
	var marker cachedMonth
	if err := db.Where("owner = ? AND month = ?", owner, key).First(&marker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, err
	}
	var rows []cachedEntry
	if err := db.Where("owner = ? AND month = ?", owner, key).Order("date").Find(&rows).Error; err != nil {
		return nil, time.Time{}, false, err
	}
	out := make([]domain.DateEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.DateEntry{Date: r.Date, Count: r.Count})
	}
	return out, marker.FetchedAt, true, nil
}

// Forget drops everything cached for owner.
func (c *GormCache) Forget(ctx context.Context, owner string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ?", owner).Delete(&cachedEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("owner = ?", owner).Delete(&cachedMonth{}).Error
	})
}

func (c *GormCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Nop is used when no cache is configured.
type Nop struct{}

func (Nop) ReplaceMonth(context.Context, string, int, time.Month, []domain.DateEntry) error {
	return nil
}

func (Nop) Month(context.Context, string, int, time.Month) ([]domain.DateEntry, time.Time, bool, error) {
	return nil, time.Time{}, false, nil
}

func (Nop) Forget(context.Context, string) error { return nil }
