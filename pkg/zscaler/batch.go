package zscaler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	ID       string
	Method   string
	Path     string
	Body     interface{}
	Params   url.Values
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Response *Response
	Error    error
	Duration time.Duration
}

// BatchExecutor runs independent operations with bounded concurrency. Each
// operation goes through the executor, so retries, caching and cache
// invalidation apply per operation.
type BatchExecutor struct {
	executor    Executor
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(executor Executor, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	return &BatchExecutor{
		executor:    executor,
		concurrency: concurrency,
		timeout:     constants.DefaultRequestTimeout,
	}
}

// SetTimeout sets the timeout for each operation.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations. Results are in operation order;
// individual failures are reported in BatchResult.Error. The returned error is
// non-nil only when ctx is done before the batch finished.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var group errgroup.Group

	group.SetLimit(b.concurrency)

	for index, operation := range operations {
		group.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}

			return nil
		})
	}

	_ = group.Wait()

	err := ctx.Err()
	if err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}

	return results, nil
}

func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	req, err := b.executor.CreateRequest(ctx, operation.Method, operation.Path, operation.Body, nil, operation.Params, false)
	if err != nil {
		result.Error = err

		return result
	}

	resp, err := b.executor.Execute(ctx, req)
	if err != nil {
		result.Error = err

		return result
	}

	result.Success = true
	result.Response = resp

	return result
}

// ExecuteBatch is shorthand for NewBatchExecutor(executor, concurrency).Execute.
func ExecuteBatch(ctx context.Context, executor Executor, operations []BatchOperation, concurrency int) ([]BatchResult, error) {
	return NewBatchExecutor(executor, concurrency).Execute(ctx, operations)
}
