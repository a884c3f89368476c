package processor

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/evaluator"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/metrics"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
)

// BatchItem is one selection set to evaluate against the batch's tree.
type BatchItem struct {
	Selections any              `json:"selections"`
	LineItem   pricing.LineItem `json:"lineItem"`
}

// BatchResult holds either the evaluation or the invalid-input error for the item at Index.
type BatchResult struct {
	Index  int               `json:"index"`
	Result *evaluator.Result `json:"result,omitempty"`
	Err    error             `json:"-"`
}

type BatchConfig struct {
	WorkerCount int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{WorkerCount: 4}
}

// BatchEvaluator fans one tree out across many selection sets on a fixed worker pool.
type BatchEvaluator struct {
	config BatchConfig
	logger ectologger.Logger
}

func NewBatchEvaluator(config BatchConfig, logger ectologger.Logger) *BatchEvaluator {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	return &BatchEvaluator{
		config: config,
		logger: logger,
	}
}

// Evaluate returns one result per item, in input order. Cancelling ctx stops workers picking up
// new items and returns ctx's error.
func (b *BatchEvaluator) Evaluate(ctx context.Context, tree *models.Tree, items []BatchItem, opts evaluator.Options) ([]BatchResult, error) {
	metrics.BatchSize.Observe(float64(len(items)))

	results := make([]BatchResult, len(items))
	jobs := make(chan int)

	workers := min(b.config.WorkerCount, len(items))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := evaluator.Evaluate(tree, items[i].Selections, items[i].LineItem, opts)
				results[i] = BatchResult{Index: i, Result: result, Err: err}
			}
		}()
	}

	var cancelled error
feed:
	for i := range items {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		b.logger.WithContext(ctx).WithError(cancelled).Warnf("batch evaluation of %d items cancelled", len(items))
		return nil, cancelled
	}
	return results, nil
}
