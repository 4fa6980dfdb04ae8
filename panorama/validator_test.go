// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/spatial"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	pano *Panorama
	err  error
}

// scriptedLookup answers from a per point script; the last reply repeats.
// Unscripted points have coverage exactly where they are.
type scriptedLookup struct {
	mu     sync.Mutex
	script map[spatial.Point][]reply
	calls  map[spatial.Point]int
	total  int
	delay  time.Duration
}

func newScriptedLookup(script map[spatial.Point][]reply) *scriptedLookup {
	return &scriptedLookup{script: script, calls: make(map[spatial.Point]int)}
}

func (s *scriptedLookup) Lookup(ctx context.Context, p spatial.Point, _ float64) (*Panorama, error) {
	s.mu.Lock()
	n := s.calls[p]
	s.calls[p]++
	s.total++
	replies, ok := s.script[p]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &LookupError{Type: ErrorTypeNetwork, Message: "cancelled", Err: ctx.Err()}
		case <-time.After(s.delay):
		}
	}

	if !ok {
		return &Panorama{ID: "pano-" + p.String(), Point: p}, nil
	}

	if n >= len(replies) {
		n = len(replies) - 1
	}

	return replies[n].pano, replies[n].err
}

func (s *scriptedLookup) Calls(p spatial.Point) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[p]
}

func (s *scriptedLookup) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

var (
	transientErr = &LookupError{Type: ErrorTypeServer, Message: "service unavailable (HTTP 503)"}
	authErr      = ClassifyStatus("REQUEST_DENIED", "The provided API key is invalid.")
)

func record(id string, lat, lng float64) locations.Record {
	when := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)

	return locations.Record{
		Point:      spatial.Point{Lat: lat, Lng: lng},
		CapturedAt: &when,
		Region:     "Region " + id,
		SourceID:   id,
	}
}

func testOptions() Options {
	return Options{
		MaxDistance:    40,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func newTestValidator(t *testing.T, lookup Lookuper, opts Options) *Validator {
	t.Helper()

	v, err := NewValidator(lookup, opts)
	require.NoError(t, err)

	return v
}

func sourceIDs(records []locations.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.SourceID)
	}

	return ids
}

func TestNewValidatorRejectsBadOptions(t *testing.T) {
	lookup := newScriptedLookup(nil)

	tests := []struct {
		name string
		opts Options
	}{
		{"zero distance", Options{}},
		{"negative distance", Options{MaxDistance: -1}},
		{"negative limit", Options{MaxDistance: 40, Limit: -1}},
		{"negative attempts", Options{MaxDistance: 40, MaxAttempts: -2}},
		{"negative concurrency", Options{MaxDistance: 40, Concurrency: -1}},
		{"negative rate", Options{MaxDistance: 40, RequestsPerSecond: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(lookup, tt.opts)
			assert.ErrorIs(t, err, locations.ErrInvalidParameter)
		})
	}

	assert.Zero(t, lookup.Total(), "no lookup before parameters are valid")
}

func TestValidateRelocatesAndDrops(t *testing.T) {
	covered := record("covered", 37.7749, -122.4194)
	uncovered := record("uncovered", 36.1, -117.2)
	far := record("far", 48.8584, 2.2945)

	panoPoint := spatial.Point{Lat: 37.77492, Lng: -122.41935}
	lookup := newScriptedLookup(map[spatial.Point][]reply{
		covered.Point:   {{pano: &Panorama{ID: "p1", Point: panoPoint}}},
		uncovered.Point: {{}},
		// 0.001 degrees of latitude is ~111m, beyond the 40m limit
		far.Point: {{pano: &Panorama{ID: "p2", Point: spatial.Point{Lat: 48.8594, Lng: 2.2945}}}},
	})

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), []locations.Record{covered, uncovered, far})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	got := res.Records[0]
	assert.Equal(t, panoPoint, got.Point)

	want := covered.WithPoint(panoPoint)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("only coordinates may change (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, StateSucceeded, res.Outcomes[0].State)
	assert.Equal(t, StateDropped, res.Outcomes[1].State)
	assert.Nil(t, res.Outcomes[1].Panorama)
	assert.Equal(t, StateDropped, res.Outcomes[2].State)
	assert.Greater(t, res.Outcomes[2].Distance, 40.0)
}

func TestValidateRetriesTransientFailures(t *testing.T) {
	r := record("flaky", 35.6762, 139.6503)
	pano := &Panorama{ID: "p", Point: spatial.Point{Lat: 35.67621, Lng: 139.65031}}

	lookup := newScriptedLookup(map[spatial.Point][]reply{
		r.Point: {{err: transientErr}, {err: ClassifyHTTPError(429)}, {pano: pano}},
	})

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), []locations.Record{r})
	require.NoError(t, err)

	assert.Equal(t, 3, lookup.Calls(r.Point))
	require.Len(t, res.Records, 1)
	assert.Equal(t, pano.Point, res.Records[0].Point)
	assert.Equal(t, StateSucceeded, res.Outcomes[0].State)
	assert.Equal(t, 3, res.Outcomes[0].Attempts)
	assert.NoError(t, res.Outcomes[0].Err)
}

func TestValidateExhaustedRetriesKeepOriginal(t *testing.T) {
	broken := record("broken", 52.52, 13.405)
	fine := record("fine", 52.53, 13.41)

	lookup := newScriptedLookup(map[spatial.Point][]reply{
		broken.Point: {{err: transientErr}},
	})

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), []locations.Record{broken, fine})
	require.NoError(t, err)

	assert.Equal(t, 3, lookup.Calls(broken.Point))
	assert.Equal(t, []locations.Record{broken, fine}, res.Records)
	assert.Equal(t, 1, res.Exhausted)
	assert.Equal(t, 0, res.Dropped)
	assert.Equal(t, StateKeptUnvalidated, res.Outcomes[0].State)
	assert.ErrorIs(t, res.Outcomes[0].Err, ErrRetriesExhausted)
	assert.ErrorIs(t, res.Outcomes[0].Err, transientErr)
}

func TestValidateNonRetryableFailureKeepsRecord(t *testing.T) {
	r := record("bad", 10, 10)

	lookup := newScriptedLookup(map[spatial.Point][]reply{
		r.Point: {{err: ClassifyStatus("INVALID_REQUEST", "")}},
	})

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), []locations.Record{r})
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.Calls(r.Point))
	assert.Equal(t, []locations.Record{r}, res.Records)
	assert.Equal(t, 1, res.Unvalidated)
	assert.Equal(t, 0, res.Exhausted)
}

func TestValidateAbortsOnAuthError(t *testing.T) {
	records := []locations.Record{
		record("a", 1, 1),
		record("b", 2, 2),
		record("c", 3, 3),
		record("d", 4, 4),
	}

	lookup := newScriptedLookup(map[spatial.Point][]reply{
		records[0].Point: {{}}, // dropped before the key is rejected
		records[1].Point: {{err: authErr}},
	})

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), records)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")

	assert.Equal(t, 2, lookup.Total(), "no request after the key was rejected")
	assert.Equal(t, []string{"b", "c", "d"}, sourceIDs(res.Records))
	assert.Equal(t, records[1:], res.Records, "untouched records are returned unmodified")
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 3, res.Unchecked)
}

func TestValidateLimit(t *testing.T) {
	records := []locations.Record{
		record("1", 1, 1),
		record("2", 2, 2),
		record("3", 3, 3),
		record("4", 4, 4),
		record("5", 5, 5),
	}

	script := map[spatial.Point][]reply{}
	for _, r := range records {
		script[r.Point] = []reply{{}} // no coverage anywhere
	}

	lookup := newScriptedLookup(script)

	opts := testOptions()
	opts.Limit = 1
	v := newTestValidator(t, lookup, opts)

	res, err := v.Validate(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.Total())
	assert.Equal(t, records[1:], res.Records)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 4, res.Unchecked)

	for _, o := range res.Outcomes[1:] {
		assert.Equal(t, StateUnchecked, o.State)
	}
}

func TestValidateNullIslandIsANormalLookup(t *testing.T) {
	r := record("null", 0.0001, 0.0001)
	lookup := newScriptedLookup(nil)

	v := newTestValidator(t, lookup, testOptions())

	res, err := v.Validate(context.Background(), []locations.Record{r})
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.Calls(r.Point))
	assert.Equal(t, []locations.Record{r}, res.Records)
}

func TestValidateSearchesWithinMaxDistance(t *testing.T) {
	var radii []float64

	lookup := LookupFunc(func(_ context.Context, p spatial.Point, radius float64) (*Panorama, error) {
		radii = append(radii, radius)

		// ~22m north
		return &Panorama{ID: "near", Point: spatial.Point{Lat: p.Lat + 0.0002, Lng: p.Lng}}, nil
	})

	opts := testOptions()
	opts.MaxDistance = 25

	v := newTestValidator(t, lookup, opts)

	res, err := v.Validate(context.Background(), []locations.Record{record("a", 40.4168, -3.7038)})
	require.NoError(t, err)

	assert.Equal(t, []float64{25}, radii)
	assert.Equal(t, 1, res.Confirmed)
	assert.InDelta(t, 22.2, res.Outcomes[0].Distance, 0.1)
}

func TestValidateConcurrentPreservesOrder(t *testing.T) {
	var records []locations.Record

	script := map[spatial.Point][]reply{}

	for i := range 40 {
		r := record(string(rune('A'+i)), float64(i+1), float64(i+1))
		records = append(records, r)

		switch i % 4 {
		case 0:
			script[r.Point] = []reply{{}}
		case 1:
			script[r.Point] = []reply{{err: transientErr}, {pano: &Panorama{Point: r.Point}}}
		case 2:
			script[r.Point] = []reply{{err: transientErr}}
		}
	}

	sequential := newTestValidator(t, newScriptedLookup(script), testOptions())
	want, err := sequential.Validate(context.Background(), records)
	require.NoError(t, err)

	opts := testOptions()
	opts.Concurrency = 8

	lookup := newScriptedLookup(script)
	lookup.delay = time.Millisecond

	var (
		mu      sync.Mutex
		decided int
	)

	opts.OnDecided = func(_ int, _ locations.Record, _ Outcome) {
		mu.Lock()
		decided++
		mu.Unlock()
	}

	concurrent := newTestValidator(t, lookup, opts)
	got, err := concurrent.Validate(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, sourceIDs(want.Records), sourceIDs(got.Records))
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, want.Dropped, got.Dropped)
	assert.Equal(t, 10, got.Dropped)
	assert.Equal(t, 10, got.Exhausted)
	assert.Equal(t, 20, got.Confirmed)
	assert.Equal(t, 40, decided)
}

func TestValidateCancelled(t *testing.T) {
	records := []locations.Record{record("a", 1, 1), record("b", 2, 2), record("c", 3, 3)}

	lookup := newScriptedLookup(map[spatial.Point][]reply{
		records[0].Point: {{err: transientErr}},
	})

	ctx, cancel := context.WithCancel(context.Background())

	opts := testOptions()
	opts.InitialBackoff = time.Hour
	opts.MaxBackoff = time.Hour
	opts.OnDecided = func(int, locations.Record, Outcome) {}

	v := newTestValidator(t, lookup, opts)

	go func() {
		for lookup.Total() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := v.Validate(ctx, records)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, records, res.Records, "nothing decided, nothing changed")
	assert.Equal(t, 3, res.Unchecked)
	assert.Equal(t, 1, lookup.Total())
}

func TestValidateRateLimited(t *testing.T) {
	records := []locations.Record{record("a", 1, 1), record("b", 2, 2), record("c", 3, 3)}

	opts := testOptions()
	opts.RequestsPerSecond = 20
	opts.Concurrency = 3

	v := newTestValidator(t, newScriptedLookup(nil), opts)

	start := time.Now()
	res, err := v.Validate(context.Background(), records)
	require.NoError(t, err)

	// burst of one: the 2nd and 3rd requests wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Len(t, res.Records, 3)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "kept_unvalidated", StateKeptUnvalidated.String())
	assert.True(t, StateDropped.Final())
	assert.False(t, StateRetrying.Final())
	assert.False(t, StateUnchecked.Final())
}
