package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Recorder bridges the in-process event bus to the store. It persists each
// ledger event and refreshes the product snapshot that rode along with it,
// so it never has to read back into the vault.
type Recorder struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration
}

func NewRecorder(s Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: s, logger: logger, timeout: 5 * time.Second}
}

func (r *Recorder) HandleEvent(evt model.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.RecordLedgerEvent(ctx, evt); err != nil {
		metrics.IncError("store", "event_insert_failed")
		r.logger.Error("store.record_event_failed",
			zap.String("event_type", evt.Type),
			zap.Uint64("product_id", evt.ProductID),
			zap.Error(err))
	}

	if evt.Snapshot == nil {
		return
	}
	if err := r.store.UpsertProductSnapshot(ctx, *evt.Snapshot); err != nil {
		metrics.IncError("store", "snapshot_upsert_failed")
		r.logger.Error("store.snapshot_upsert_failed",
			zap.Uint64("product_id", evt.Snapshot.ID),
			zap.Error(err))
	}
}
