// Package timing accumulates per-stage wall-clock durations of the frame loop.
package timing

import (
	"context"
	"sort"
	"sync"
	"time"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Stage names recorded by the tracker.
const (
	StageRead       = "read"
	StagePreprocess = "preprocess"
	StageContours   = "contours"
	StageScore      = "score"
	StageFrame      = "frame"
)

type Tracker struct {
	timings map[string][]time.Duration
	mu      sync.RWMutex
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
	}
}

// StartTiming derives a context carrying the start of operation. A nil
// Tracker records nothing.
func (tt *Tracker) StartTiming(ctx context.Context, operation string) context.Context {
	if tt == nil {
		return ctx
	}
	return context.WithValue(ctx, timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: time.Now(),
	})
}

// EndTiming records the time elapsed since the matching StartTiming.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	if tt == nil {
		return 0
	}

	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return 0
	}

	duration := time.Since(timingInfo.StartTime)
	tt.Record(timingInfo.Operation, duration)
	return duration
}

func (tt *Tracker) Record(operation string, d time.Duration) {
	tt.mu.Lock()
	tt.timings[operation] = append(tt.timings[operation], d)
	tt.mu.Unlock()
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, duration := range timings {
		total += duration
	}

	return total / time.Duration(len(timings))
}

// Summary returns the average duration per recorded stage, keyed by stage name.
func (tt *Tracker) Summary() map[string]time.Duration {
	tt.mu.RLock()
	ops := make([]string, 0, len(tt.timings))
	for op := range tt.timings {
		ops = append(ops, op)
	}
	tt.mu.RUnlock()
	sort.Strings(ops)

	out := make(map[string]time.Duration, len(ops))
	for _, op := range ops {
		out[op] = tt.GetAverageTime(op)
	}
	return out
}
