// Package compare diffs two firmware file indexes and decides which common
// binaries changed enough to be reported as modified.
package compare

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sdejongh/fwdiffer/pkg/fuzzy"
	"github.com/sdejongh/fwdiffer/pkg/logging"
	"github.com/sdejongh/fwdiffer/pkg/models"
	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the similarity at or below which a binary counts as modified
const DefaultThreshold = 30

// Classifier assigns a category to a file
type Classifier interface {
	Classify(path string) (models.FileCategory, error)
}

// Hasher fingerprints a file
type Hasher interface {
	Fingerprint(ctx context.Context, path string) (fuzzy.Digest, error)
}

// ScoreFunc scores two digests from 0 to 100
type ScoreFunc func(a, b fuzzy.Digest) (int, error)

// Progress is emitted after every evaluated common pair
type Progress struct {
	Name      string
	Processed int
	Total     int
}

// PairDebug describes one fuzzy-compared pair, before the threshold is applied
type PairDebug struct {
	Name       string
	Category   models.FileCategory
	OldPath    string
	NewPath    string
	OldDigest  fuzzy.Digest
	NewDigest  fuzzy.Digest
	Similarity int
}

// Options configures an Engine
type Options struct {
	// Threshold in 0..100; pairs scoring at or below it are modified
	Threshold int
	// Workers bounds concurrent pair evaluations (default: number of CPUs)
	Workers int
	// AbortOnFirstError stops the whole run on the first failing pair.
	// When false, failing pairs are collected in DiffResult.Skipped.
	AbortOnFirstError bool
	// Score defaults to fuzzy.Similarity
	Score  ScoreFunc
	Logger logging.Logger

	// OnProgress and OnDebug are never called concurrently
	OnProgress func(Progress)
	OnDebug    func(PairDebug)
}

// DefaultOptions returns fail-fast options with the default threshold
func DefaultOptions() Options {
	return Options{
		Threshold:         DefaultThreshold,
		Workers:           runtime.NumCPU(),
		AbortOnFirstError: true,
	}
}

// Engine runs comparisons. One Engine may serve several independent Diff calls.
type Engine struct {
	classifier Classifier
	hasher     Hasher
	opts       Options
	logger     logging.Logger
}

// NewEngine creates a diff engine
func NewEngine(classifier Classifier, hasher Hasher, opts Options) (*Engine, error) {
	if opts.Threshold < 0 || opts.Threshold > 100 {
		return nil, &models.ValidationError{
			Field:   "similarity_threshold",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", opts.Threshold),
		}
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Score == nil {
		opts.Score = fuzzy.Similarity
	}

	return &Engine{
		classifier: classifier,
		hasher:     hasher,
		opts:       opts,
		logger:     logging.OrNull(opts.Logger),
	}, nil
}

// outcome is the evaluation of one common pair
type outcome struct {
	modified  *models.ModifiedEntry
	debug     *PairDebug
	evaluated bool
}

// Diff compares two indexes. With AbortOnFirstError set, any classifier or
// hasher failure cancels in-flight pairs and no result is returned.
func (e *Engine) Diff(ctx context.Context, oldIdx, newIdx *models.FileIndex) (*models.DiffResult, error) {
	start := time.Now()
	added, removed, common := models.KeySets(oldIdx, newIdx)

	result := &models.DiffResult{
		ID:        uuid.New().String(),
		Threshold: e.opts.Threshold,
		Added:     added,
		Removed:   removed,
		Common:    len(common),
		Modified:  []models.ModifiedEntry{},
		StartTime: start,
	}
	if oldIdx != nil {
		result.OldRoot = oldIdx.Root
	}
	if newIdx != nil {
		result.NewRoot = newIdx.Root
	}

	logger := e.logger.WithFields(logging.Fields{"run_id": result.ID})
	logger.Info(ctx, "Starting comparison", logging.Fields{
		"added":     len(added),
		"removed":   len(removed),
		"common":    len(common),
		"threshold": e.opts.Threshold,
		"workers":   e.opts.Workers,
	})

	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, name := range common {
		if gctx.Err() != nil {
			break
		}

		oldPath, _ := oldIdx.Path(name)
		newPath, _ := newIdx.Path(name)
		cand := models.Candidate{Name: name, OldPath: oldPath, NewPath: newPath}

		g.Go(func() error {
			out, err := e.evaluate(gctx, cand)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if e.opts.AbortOnFirstError {
					return fmt.Errorf("failed to compare %s: %w", cand.Name, err)
				}
				logger.Warn(gctx, "Skipping pair", logging.Fields{"name": cand.Name, "error": err.Error()})
				result.Skipped = append(result.Skipped, models.PairError{
					Name:    cand.Name,
					OldPath: cand.OldPath,
					NewPath: cand.NewPath,
					Err:     err,
				})
			} else {
				if out.evaluated {
					result.Evaluated++
				}
				if out.debug != nil {
					logger.Debug(gctx, "Pair scored", logging.Fields{
						"name":       out.debug.Name,
						"old_digest": out.debug.OldDigest.String(),
						"new_digest": out.debug.NewDigest.String(),
						"similarity": out.debug.Similarity,
					})
					if e.opts.OnDebug != nil {
						e.opts.OnDebug(*out.debug)
					}
				}
				if out.modified != nil {
					result.Modified = append(result.Modified, *out.modified)
				}
			}

			processed++
			if e.opts.OnProgress != nil {
				e.opts.OnProgress(Progress{Name: cand.Name, Processed: processed, Total: len(common)})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Comparison aborted", err, nil)
		return nil, err
	}
	// the loop stops scheduling once the parent context is done
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortModified(result.Modified)
	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].Name < result.Skipped[j].Name
	})
	result.Duration = time.Since(start)

	logger.Info(ctx, "Comparison complete", logging.Fields{
		"modified":  len(result.Modified),
		"evaluated": result.Evaluated,
		"skipped":   len(result.Skipped),
		"duration":  result.Duration.String(),
	})
	return result, nil
}

// evaluate classifies both sides of a pair and, for matching binary
// categories, fingerprints and scores them
func (e *Engine) evaluate(ctx context.Context, cand models.Candidate) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	oldCat, err := e.classifier.Classify(cand.OldPath)
	if err != nil {
		return outcome{}, err
	}
	newCat, err := e.classifier.Classify(cand.NewPath)
	if err != nil {
		return outcome{}, err
	}

	if oldCat != newCat {
		e.logger.Debug(ctx, "Category changed, not compared", logging.Fields{
			"name": cand.Name,
			"old":  oldCat.String(),
			"new":  newCat.String(),
		})
		return outcome{}, nil
	}

	switch oldCat {
	case models.CategoryExecutable, models.CategoryKernelModule:
	case models.CategoryOther:
		return outcome{}, nil
	default:
		return outcome{}, fmt.Errorf("unknown category %d", int(oldCat))
	}

	oldDigest, err := e.hasher.Fingerprint(ctx, cand.OldPath)
	if err != nil {
		return outcome{}, err
	}
	newDigest, err := e.hasher.Fingerprint(ctx, cand.NewPath)
	if err != nil {
		return outcome{}, err
	}

	score, err := e.opts.Score(oldDigest, newDigest)
	if err != nil {
		return outcome{}, &models.HashError{Path: cand.NewPath, Err: err}
	}

	out := outcome{
		evaluated: true,
		debug: &PairDebug{
			Name:       cand.Name,
			Category:   oldCat,
			OldPath:    cand.OldPath,
			NewPath:    cand.NewPath,
			OldDigest:  oldDigest,
			NewDigest:  newDigest,
			Similarity: score,
		},
	}
	if score <= e.opts.Threshold {
		out.modified = &models.ModifiedEntry{
			Name:       cand.Name,
			OldPath:    cand.OldPath,
			NewPath:    cand.NewPath,
			Similarity: score,
			Category:   oldCat,
		}
	}
	return out, nil
}

func sortModified(entries []models.ModifiedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Category.Rank() < entries[j].Category.Rank()
	})
}
