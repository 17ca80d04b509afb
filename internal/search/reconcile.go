package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

// DefaultReconcileBatch is the number of documents embedded per provider call during repair.
const DefaultReconcileBatch = 32

// ProgressFunc receives the running count of repaired documents.
type ProgressFunc func(repaired int)

// Reconcile embeds every document that has no current embedding, batchSize at a
// time, and returns how many were repaired. Documents deleted mid-run are skipped.
func (o *Orchestrator) Reconcile(ctx context.Context, batchSize int, progress ProgressFunc) (int, error) {
	if batchSize < 1 {
		return 0, apperr.Validation("reconcile", "batch size must be at least 1, got %d", batchSize)
	}
	repaired := 0
	for {
		if err := ctx.Err(); err != nil {
			return repaired, apperr.External("reconcile", err)
		}
		batch, err := o.store.DocumentsWithoutEmbeddings(ctx, batchSize)
		if err != nil {
			return repaired, err
		}
		if len(batch) == 0 {
			return repaired, nil
		}

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = models.EmbeddingText(d.Title, d.Content)
		}
		results, err := o.embedder.GenerateEmbeddingsBatch(ctx, texts)
		if err != nil {
			return repaired, err
		}
		for i, d := range batch {
			_, err := o.store.StoreEmbedding(ctx, d.ID, results[i].Vector, results[i].Model)
			if apperr.Is(err, apperr.KindNotFound) {
				o.logger.Debug("document vanished during reconcile", zap.Int64("document_id", d.ID))
				continue
			}
			if err != nil {
				return repaired, err
			}
			repaired++
		}
		o.logger.Info("reconcile batch stored", zap.Int("batch", len(batch)), zap.Int("repaired", repaired))
		if progress != nil {
			progress(repaired)
		}
	}
}
