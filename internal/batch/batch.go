// Package batch analyzes a set of food photos in one run, collected
// from a directory or a list file.
package batch

import (
	"context"
	"fmt"
	goimage "image"
	"io"
	"sync"
	"time"

	"github.com/snapcal/snapcal/internal/image"
	"github.com/snapcal/snapcal/pkg/models"
)

// Analyzer produces a nutritional estimate for a decoded photo.
type Analyzer interface {
	Analyze(ctx context.Context, img goimage.Image) (*models.FoodAnalysis, error)
}

// Recorder persists finished analyses.
type Recorder interface {
	Create(ctx context.Context, analysis *models.FoodAnalysis) error
}

type Result struct {
	Index    int
	Path     string
	Analysis *models.FoodAnalysis
	Error    error
	Duration time.Duration
}

type Options struct {
	Parallel    int
	StopOnError bool
	Delay       time.Duration
	NoSave      bool
}

type Processor struct {
	analyzer Analyzer
	recorder Recorder
	out      io.Writer
	errOut   io.Writer
	outMu    sync.Mutex
}

func NewProcessor(analyzer Analyzer, recorder Recorder, out, errOut io.Writer) *Processor {
	return &Processor{
		analyzer: analyzer,
		recorder: recorder,
		out:      out,
		errOut:   errOut,
	}
}

func (p *Processor) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	fmt.Fprintf(p.out, format, args...)
	p.outMu.Unlock()
}

func (p *Processor) errorf(format string, args ...interface{}) {
	p.outMu.Lock()
	fmt.Fprintf(p.errOut, format, args...)
	p.outMu.Unlock()
}

func (p *Processor) Process(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	if opts.Parallel <= 1 {
		return p.processSequential(ctx, items, opts)
	}
	return p.processParallel(ctx, items, opts)
}

func (p *Processor) processSequential(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, len(items))
	total := len(items)

	for i, item := range items {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result := p.processItem(ctx, item, opts, i+1, total)
		results[i] = result

		if result.Error != nil && opts.StopOnError {
			return results, fmt.Errorf("stopped at photo %d: %w", i+1, result.Error)
		}

		if opts.Delay > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}

	return results, nil
}

func (p *Processor) processParallel(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, len(items))
	total := len(items)

	type job struct {
		index int
		item  Item
	}

	jobs := make(chan job, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	// firstErr is only touched under mu; stopping is observed through this
	// helper so no goroutine reads the flag unlocked.
	stopped := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	workers := opts.Parallel
	if workers > len(items) {
		workers = len(items)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result := p.processItem(ctx, j.item, opts, j.index+1, total)

				mu.Lock()
				results[j.index] = result
				if result.Error != nil && opts.StopOnError && firstErr == nil {
					firstErr = result.Error
				}
				stop := opts.StopOnError && firstErr != nil
				mu.Unlock()

				if stop {
					return
				}
			}
		}()
	}

	for i, item := range items {
		if opts.StopOnError && stopped() {
			break
		}
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	wg.Wait()

	if firstErr != nil {
		return results, fmt.Errorf("batch stopped due to error: %w", firstErr)
	}

	return results, nil
}

func (p *Processor) processItem(ctx context.Context, item Item, opts *Options, current, total int) Result {
	start := time.Now()
	result := Result{
		Index: item.Index,
		Path:  item.Path,
	}

	p.printf("[%d/%d] Analyzing %s...\n", current, total, item.Path)

	img, err := image.Load(item.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to load photo: %w", err)
		result.Duration = time.Since(start)
		p.errorf("       Error: %v\n", result.Error)
		return result
	}

	analysis, err := p.analyzer.Analyze(ctx, img)
	if err != nil {
		result.Error = fmt.Errorf("analysis failed: %w", err)
		result.Duration = time.Since(start)
		p.errorf("       Error: %v\n", result.Error)
		return result
	}

	if !opts.NoSave {
		if err := p.recorder.Create(ctx, analysis); err != nil {
			result.Error = fmt.Errorf("save failed: %w", err)
			result.Duration = time.Since(start)
			p.errorf("       Error: %v\n", result.Error)
			return result
		}
	}

	result.Analysis = analysis
	result.Duration = time.Since(start)
	p.printf("       %s: %d kcal (confidence %.0f%%)\n", analysis.MealName, analysis.TotalCalories, analysis.Confidence*100)

	return result
}
