package workers

import (
	"context"
	"time"

	"rewards-ledger/models"
	"rewards-ledger/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler is the slice of the ledger the sweep needs.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) (services.Balances, error)
}

// ReconcileWorker periodically rebuilds every user's cached balances from the transaction log.
type ReconcileWorker struct {
	DB        *gorm.DB
	Ledger    Reconciler
	Log       logrus.FieldLogger
	Interval  time.Duration
	BatchSize int
}

func NewReconcileWorker(db *gorm.DB, ledger Reconciler, log logrus.FieldLogger, interval time.Duration, batchSize int) *ReconcileWorker {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReconcileWorker{DB: db, Ledger: ledger, Log: log, Interval: interval, BatchSize: batchSize}
}

// Start blocks until ctx is cancelled, sweeping once per Interval.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.Log.WithField("interval", w.Interval.String()).Info("Starting wallet reconcile worker")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("Wallet reconcile worker stopped")
			return
		case <-ticker.C:
			started := time.Now()
			checked, failed, err := w.Sweep(ctx)
			entry := w.Log.WithFields(logrus.Fields{
				"checked":  checked,
				"failed":   failed,
				"duration": time.Since(started).String(),
			})
			if err != nil {
				entry.WithError(err).Error("Wallet reconcile sweep aborted")
				continue
			}
			entry.Info("Wallet reconcile sweep finished")
		}
	}
}

// Sweep pages through users by id and reconciles each one. A failing user is logged and skipped.
func (w *ReconcileWorker) Sweep(ctx context.Context) (checked, failed int, err error) {
	lastID := ""
	for {
		if ctx.Err() != nil {
			return checked, failed, ctx.Err()
		}

		var ids []string
		if err := pageQuery(w.DB.WithContext(ctx), lastID, w.BatchSize).Pluck("id", &ids).Error; err != nil {
			return checked, failed, err
		}
		if len(ids) == 0 {
			return checked, failed, nil
		}

		for _, id := range ids {
			if _, err := w.Ledger.Reconcile(ctx, id); err != nil {
				failed++
				w.Log.WithError(err).WithField("user_id", id).Warn("Wallet reconcile failed")
				continue
			}
			checked++
		}
		lastID = ids[len(ids)-1]
	}
}

// pageQuery selects the next batch of user ids. The first page carries no cursor, since an empty
// string is not a valid uuid literal.
func pageQuery(db *gorm.DB, lastID string, limit int) *gorm.DB {
	q := db.Model(&models.User{})
	if lastID != "" {
		q = q.Where("id > ?", lastID)
	}
	return q.Order("id").Limit(limit)
}
