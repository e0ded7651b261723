// Package detectiondb stores detection batches that are POSTed to our API, so that
// clients can query recent history and aggregate statistics.
package detectiondb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/gen"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/log"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
)

const DefaultMaxBatches = 1000

var ErrEmptyBatch = errors.New("Batch has no detections array")

type DetectionDB struct {
	log        logs.Log
	db         *gorm.DB
	maxBatches int
	lock       sync.Mutex // Serializes insert+purge
}

// Aggregate statistics over all stored batches
type Stats struct {
	TotalBatches    int64            `json:"total_batches"`
	TotalDetections int64            `json:"total_detections"`
	Classes         map[string]int64 `json:"classes"`
	MeanConfidence  float64          `json:"mean_confidence"`
	TopClass        string           `json:"top_class,omitempty"`
	LastReceived    time.Time        `json:"last_received"`
}

// Open or create a detection DB
func Open(logger logs.Log, dbPath string, maxBatches int) (*DetectionDB, error) {
	logger = log.NewPrefixLogger(logger, "DetectionDB:")
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, fmt.Errorf("Failed to create detection DB directory '%v': %w", dir, err)
		}
	}
	logger.Infof("Opening DB at '%v'", dbPath)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbPath), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open detection database %v: %w", dbPath, err)
	}
	return &DetectionDB{
		log:        logger,
		db:         db,
		maxBatches: maxBatches,
	}, nil
}

func (d *DetectionDB) Close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// AddBatch stores a batch, and purges the oldest batches beyond maxBatches
func (d *DetectionDB) AddBatch(batch *reporter.Batch) (*Batch, error) {
	if batch.Detections == nil {
		return nil, ErrEmptyBatch
	}
	rec := &Batch{
		ReceivedAt: dbh.MakeIntTime(time.Now()),
		Timestamp:  batch.Timestamp,
	}
	for _, det := range batch.Detections {
		rec.Detections = append(rec.Detections, &Detection{
			Class:      det.Class,
			Confidence: det.Confidence,
			Hits:       det.Hits,
			Age:        det.Age,
			X1:         det.BBox[0],
			Y1:         det.BBox[1],
			X2:         det.BBox[2],
			Y2:         det.BBox[3],
			Verified:   det.Verified,
		})
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return d.purge(tx)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *DetectionDB) purge(tx *gorm.DB) error {
	// ID of the oldest batch that survives
	cutoff := int64(0)
	if err := tx.Raw("SELECT id FROM batch ORDER BY id DESC LIMIT 1 OFFSET ?", d.maxBatches-1).Scan(&cutoff).Error; err != nil {
		return err
	}
	if cutoff == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM detection WHERE batch_id < ?", cutoff).Error; err != nil {
		return err
	}
	return tx.Exec("DELETE FROM batch WHERE id < ?", cutoff).Error
}

// Recent returns the most recent batches, oldest first
func (d *DetectionDB) Recent(limit int) ([]*Batch, error) {
	limit = gen.Clamp(limit, 1, d.maxBatches)
	batches := []*Batch{}
	err := d.db.Preload("Detections", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Order("id DESC").Limit(limit).Find(&batches).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(batches)
	return batches, nil
}

func (d *DetectionDB) Stats() (*Stats, error) {
	s := &Stats{
		Classes: map[string]int64{},
	}
	if err := d.db.Model(&Batch{}).Count(&s.TotalBatches).Error; err != nil {
		return nil, err
	}
	type row struct {
		Class      string
		Confidence float64
	}
	rows := []row{}
	if err := d.db.Model(&Detection{}).Select("class, confidence").Order("id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	s.TotalDetections = int64(len(rows))
	if len(rows) != 0 {
		classes := make([]string, len(rows))
		confidence := make([]float64, len(rows))
		for i, r := range rows {
			classes[i] = r.Class
			confidence[i] = r.Confidence
			s.Classes[r.Class]++
		}
		s.MeanConfidence = reporter.Round2(stat.Mean(confidence, nil))
		s.TopClass, _ = gen.Mode(classes)
	}
	last := Batch{}
	if err := d.db.Order("id DESC").Limit(1).Find(&last).Error; err != nil {
		return nil, err
	}
	if last.ID != 0 {
		s.LastReceived = last.ReceivedAt.Get()
	}
	return s, nil
}

// Clear erases all batches
func (d *DetectionDB) Clear() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM detection").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM batch").Error
	})
}
