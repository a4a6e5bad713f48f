package portfolio

import (
	"context"
	"sync"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// WorkerPool runs per-asset analysis on a fixed number of goroutines.
// Assets are independent, so the only synchronization is the final collect.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// AnalyzeFunc analyzes one asset series
type AnalyzeFunc func(series *domain.PriceSeries) AssetAnalysis

// AnalyzeBatch analyzes every series in parallel and returns the results in
// input order. Series not yet started when ctx is cancelled are returned with
// a diagnostic instead of being analyzed.
func (wp *WorkerPool) AnalyzeBatch(ctx context.Context, series []*domain.PriceSeries, analyze AnalyzeFunc) []AssetAnalysis {
	numJobs := len(series)
	if numJobs == 0 {
		return []AssetAnalysis{}
	}

	jobs := make(chan jobItem, numJobs)
	results := make(chan resultItem, numJobs)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numJobs < numActualWorkers {
		numActualWorkers = numJobs
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, analyze)
		}()
	}

	for idx, s := range series {
		jobs <- jobItem{index: idx, series: s}
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := make([]AssetAnalysis, numJobs)
	for result := range results {
		out[result.index] = result.analysis
	}
	return out
}

type jobItem struct {
	series *domain.PriceSeries
	index  int
}

type resultItem struct {
	analysis AssetAnalysis
	index    int
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, analyze AnalyzeFunc) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			asset := job.series.Asset()
			results <- resultItem{
				index: job.index,
				analysis: AssetAnalysis{
					Asset:       asset,
					Diagnostics: []domain.Diagnostic{domain.DiagnosticFromError(asset, "analysis", err)},
				},
			}
			continue
		}
		results <- resultItem{index: job.index, analysis: analyze(job.series)}
	}
}
