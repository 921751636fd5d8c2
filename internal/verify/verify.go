// Package verify implements the Database Verifier (C13): a periodic
// batched existence sweep over the CSV projection that confirms every
// row still has a live counterpart in the library, removing (and
// logging) the ones that don't. Grounded on
// internal/downloads/verify.go's per-item verification-result map and
// internal/radio/cache.go's CleanExpired batched-removal shape, adapted
// from disk-existence checks to agent existence checks.
package verify

import (
	"context"
	"time"

	"github.com/waves-sync/waves-sync/internal/synclog"
)

// defaultBatchSize and defaultBatchPause match spec.md §4.13's typical
// values: batches of 20 ids, ~0.2s between batches so as not to hammer
// the agent.
const (
	defaultBatchSize  = 20
	defaultBatchPause = 200 * time.Millisecond
)

// Existence is the subset of internal/agent.Client this package needs.
type Existence interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Entry is the minimal shape of a CSV projection row this package
// verifies. internal/csvproj's row type satisfies this directly.
type Entry interface {
	TrackID() string
}

// Remover deletes confirmed-absent rows from the CSV projection.
type Remover interface {
	RemoveByID(id string) (removed bool)
}

// Config tunes the sweep's batching.
type Config struct {
	BatchSize  int
	BatchPause time.Duration
}

// DefaultConfig returns spec.md §4.13's typical batch shape.
func DefaultConfig() Config {
	return Config{BatchSize: defaultBatchSize, BatchPause: defaultBatchPause}
}

// Verifier runs the batched existence sweep.
type Verifier struct {
	cfg   Config
	agent Existence
	log   synclog.Logger
}

// New creates a Verifier.
func New(cfg Config, agent Existence, log synclog.Logger) *Verifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	return &Verifier{cfg: cfg, agent: agent, log: log}
}

// Result summarizes one sweep.
type Result struct {
	Checked int
	Removed []string
}

// sleeper abstracts time.Sleep so tests run instantly.
type sleeper func(time.Duration)

// Run sweeps entries in batches, concurrently checking existence within
// each batch, and removes (via remover) every id the agent confirms
// absent. Transient errors from the agent already default to "present"
// inside Existence.Exists, so only an explicit "not found" response
// drives a removal here.
func (v *Verifier) Run(ctx context.Context, entries []Entry, remover Remover) Result {
	return v.run(ctx, entries, remover, time.Sleep)
}

func (v *Verifier) run(ctx context.Context, entries []Entry, remover Remover, sleep sleeper) Result {
	var res Result

	for start := 0; start < len(entries); start += v.cfg.BatchSize {
		end := start + v.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		type outcome struct {
			id      string
			present bool
		}
		results := make(chan outcome, len(batch))
		for _, e := range batch {
			id := e.TrackID()
			go func(id string) {
				present, _ := v.agent.Exists(ctx, id)
				results <- outcome{id: id, present: present}
			}(id)
		}

		for range batch {
			o := <-results
			res.Checked++
			if o.present {
				continue
			}
			if remover.RemoveByID(o.id) {
				res.Removed = append(res.Removed, o.id)
				v.log.Info().Str("track_id", o.id).Msg("removed absent track from csv projection")
			}
		}

		if end < len(entries) {
			select {
			case <-ctx.Done():
				return res
			default:
			}
			sleep(v.cfg.BatchPause)
		}
	}

	return res
}
