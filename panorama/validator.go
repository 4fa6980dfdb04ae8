// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// State is the position of a record in the validation state machine:
//
//	Pending → Retrying(n) → {Succeeded, Dropped, KeptUnvalidated}
//
// Records that are never looked up, because of the limit or because the run
// was aborted, end up Unchecked.
type State int

const (
	StatePending State = iota
	StateRetrying
	StateSucceeded
	StateDropped
	StateKeptUnvalidated
	StateUnchecked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateDropped:
		return "dropped"
	case StateKeptUnvalidated:
		return "kept_unvalidated"
	case StateUnchecked:
		return "unchecked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Final reports whether the record was decided by a lookup.
func (s State) Final() bool {
	return s == StateSucceeded || s == StateDropped || s == StateKeptUnvalidated
}

// Outcome is what happened to one record.
type Outcome struct {
	State    State
	Attempts int
	// Panorama is set for Succeeded records and for records dropped because
	// the nearest panorama is too far away.
	Panorama *Panorama
	// Distance between the record and Panorama in meters.
	Distance float64
	Err      error
}

// Options tune a Validator.
type Options struct {
	// MaxDistance is the search radius and the largest accepted distance
	// between a record and its panorama, in meters.
	MaxDistance float64

	// Limit caps the number of records looked up, 0 checks all of them.
	// Records past the limit are passed through unchecked. Meant for trying
	// settings without paying for a full run.
	Limit int

	// MaxAttempts per record, 3 when zero.
	MaxAttempts int

	// InitialBackoff and MaxBackoff bound the exponential delay between
	// attempts, 500ms and 8s when zero.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RequestsPerSecond spaces requests across all workers, 0 disables it.
	RequestsPerSecond float64

	// Concurrency is the number of lookups in flight, 1 when zero.
	Concurrency int

	// OnDecided, if set, is called once per looked up record. It must be
	// safe for concurrent use when Concurrency > 1.
	OnDecided func(index int, record locations.Record, outcome Outcome)
}

// Result of a validation run.
type Result struct {
	// Records are the kept records, in input order.
	Records []locations.Record
	// Outcomes holds one entry per input record.
	Outcomes []Outcome

	Checked     int
	Confirmed   int
	Dropped     int
	Exhausted   int
	Unvalidated int
	Unchecked   int
}

// Validator checks records against panorama coverage.
type Validator struct {
	lookup  Lookuper
	limiter *rate.Limiter
	opts    Options
}

// NewValidator validates the options and returns a Validator using lookup.
func NewValidator(lookup Lookuper, opts Options) (*Validator, error) {
	if lookup == nil {
		return nil, errors.New("panorama: nil lookuper")
	}

	if err := locations.RequirePositive("panorama max distance", opts.MaxDistance); err != nil {
		return nil, err
	}

	switch {
	case opts.Limit < 0:
		return nil, fmt.Errorf("%w: panorama limit must not be negative (got %d)", locations.ErrInvalidParameter, opts.Limit)
	case opts.MaxAttempts < 0:
		return nil, fmt.Errorf("%w: panorama attempts must not be negative (got %d)", locations.ErrInvalidParameter, opts.MaxAttempts)
	case opts.Concurrency < 0:
		return nil, fmt.Errorf("%w: panorama concurrency must not be negative (got %d)", locations.ErrInvalidParameter, opts.Concurrency)
	case opts.RequestsPerSecond < 0 || math.IsNaN(opts.RequestsPerSecond):
		return nil, fmt.Errorf("%w: panorama requests per second must not be negative (got %v)", locations.ErrInvalidParameter, opts.RequestsPerSecond)
	case opts.InitialBackoff < 0 || opts.MaxBackoff < 0:
		return nil, fmt.Errorf("%w: panorama backoff must not be negative", locations.ErrInvalidParameter)
	}

	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}

	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}

	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 8 * time.Second
	}

	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	if opts.Concurrency == 0 {
		opts.Concurrency = 1
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Validator{
		lookup:  lookup,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
	}, nil
}

// WithOnDecided returns a copy of v reporting decisions to fn. The copy
// shares the rate limiter of v.
func (v *Validator) WithOnDecided(fn func(index int, record locations.Record, outcome Outcome)) *Validator {
	c := *v
	c.opts.OnDecided = fn

	return &c
}

// Validate looks up every record (up to the limit), relocates covered
// records onto their panorama and drops uncovered ones. Records that could
// not be checked are kept unmodified.
//
// An auth failure stops the run: records decided so far keep their decision,
// the rest are returned unmodified and the error wraps ErrAuth. Cancelling ctx
// behaves the same way and returns ctx's error.
func (v *Validator) Validate(ctx context.Context, records []locations.Record) (*Result, error) {
	n := len(records)

	checked := n
	if v.opts.Limit > 0 && v.opts.Limit < n {
		checked = v.opts.Limit
	}

	outcomes := make([]Outcome, n)

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, v.opts.Concurrency)

dispatch:
	for i := range checked {
		select {
		case semaphore <- struct{}{}:
		case <-runCtx.Done():
			break dispatch
		}

		if runCtx.Err() != nil {
			<-semaphore

			break
		}

		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			o := v.decide(runCtx, records[i])
			if o.State == StateUnchecked && IsAuthError(o.Err) {
				abort(o.Err)
			}

			// each worker owns its slot, ordering comes from the index
			outcomes[i] = o

			if o.State == StateKeptUnvalidated {
				log.Printf("⚠️  %s %s kept without panorama check: %v", records[i].SourceID, records[i].Point, o.Err)
			}

			if o.State.Final() && v.opts.OnDecided != nil {
				v.opts.OnDecided(i, records[i], o)
			}
		}(i)
	}

	wg.Wait()

	res := &Result{
		Records:  make([]locations.Record, 0, n),
		Outcomes: outcomes,
	}

	for i, r := range records {
		o := &outcomes[i]

		switch o.State {
		case StateSucceeded:
			res.Checked++
			res.Confirmed++
			res.Records = append(res.Records, r.WithPoint(o.Panorama.Point))
		case StateDropped:
			res.Checked++
			res.Dropped++
		case StateKeptUnvalidated:
			res.Checked++

			if errors.Is(o.Err, ErrRetriesExhausted) {
				res.Exhausted++
			} else {
				res.Unvalidated++
			}

			res.Records = append(res.Records, r)
		default:
			o.State = StateUnchecked
			res.Unchecked++
			res.Records = append(res.Records, r)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return res, fmt.Errorf("panorama validation aborted: %w", cause)
	}

	return res, nil
}

// decide runs the state machine for one record.
func (v *Validator) decide(ctx context.Context, r locations.Record) Outcome {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.opts.InitialBackoff
	b.MaxInterval = v.opts.MaxBackoff
	b.MaxElapsedTime = 0 // attempts bound the loop
	b.Reset()

	o := Outcome{State: StatePending}

	for !o.State.Final() && o.State != StateUnchecked {
		if err := v.limiter.Wait(ctx); err != nil {
			return v.interrupted(ctx, o, err)
		}

		o.Attempts++

		pano, err := v.lookup.Lookup(ctx, r.Point, v.opts.MaxDistance)

		switch {
		case err == nil && pano == nil:
			o.State, o.Err = StateDropped, nil
		case err == nil:
			o.Panorama = pano
			o.Distance = r.HaversineDistance(pano.Point)
			o.Err = nil

			if o.Distance > v.opts.MaxDistance {
				o.State = StateDropped
			} else {
				o.State = StateSucceeded
			}
		case ctx.Err() != nil:
			return v.interrupted(ctx, o, err)
		case IsAuthError(err):
			o.State, o.Err = StateUnchecked, err
		case !IsRetryable(err):
			o.State, o.Err = StateKeptUnvalidated, err
		case o.Attempts >= v.opts.MaxAttempts:
			o.State = StateKeptUnvalidated
			o.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, o.Attempts, err)
		default:
			o.State, o.Err = StateRetrying, err

			wait := b.NextBackOff()
			if wait == backoff.Stop {
				o.State = StateKeptUnvalidated
				o.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, o.Attempts, err)

				break
			}

			if IsRateLimitError(err) {
				log.Printf("🛑 %s rate limited, retrying in %s", r.Point, wait.Round(time.Millisecond))
			}

			if err := sleep(ctx, wait); err != nil {
				return v.interrupted(ctx, o, err)
			}
		}
	}

	return o
}

// interrupted leaves the record untouched when the run stops under it.
func (v *Validator) interrupted(ctx context.Context, o Outcome, err error) Outcome {
	o.State = StateUnchecked
	o.Panorama = nil

	if cause := context.Cause(ctx); cause != nil {
		o.Err = cause
	} else {
		o.Err = err
	}

	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
