package services

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/monitoring"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const archiveBatchSize = 1000

type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ArchiveService copies a day of postback_logs to object storage as JSON lines. Rows stay in the database.
type ArchiveService struct {
	DB     *gorm.DB
	Log    logrus.FieldLogger
	Store  ObjectStore
	Prefix string
}

func NewArchiveService(db *gorm.DB, log logrus.FieldLogger, store ObjectStore, prefix string) *ArchiveService {
	return &ArchiveService{DB: db, Log: log, Store: store, Prefix: prefix}
}

// ArchiveKey is <prefix>/<YYYY-MM-DD>.jsonl for the given UTC day.
func (s *ArchiveService) ArchiveKey(day time.Time) string {
	return path.Join(s.Prefix, day.UTC().Format(time.DateOnly)+".jsonl")
}

// ArchiveDay exports the UTC calendar day containing day. It returns the object key and row count.
func (s *ArchiveService) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var (
		buf   bytes.Buffer
		count int
		batch []models.PostbackLog
	)
	enc := json.NewEncoder(&buf)
	err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		FindInBatches(&batch, archiveBatchSize, func(tx *gorm.DB, _ int) error {
			for _, row := range batch {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			count += len(batch)
			return nil
		}).Error
	if err != nil {
		monitoring.ArchiveRunsTotal.WithLabelValues("error").Inc()
		return "", 0, err
	}

	key := s.ArchiveKey(start)
	if err := s.Store.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		monitoring.ArchiveRunsTotal.WithLabelValues("error").Inc()
		return "", 0, err
	}
	monitoring.ArchiveRunsTotal.WithLabelValues("ok").Inc()
	return key, count, nil
}
