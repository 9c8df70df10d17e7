// Package analytics keeps the usage counters shown on the analytics page.
package analytics

import (
	"context"
	"sync"

	"github.com/Skufu/excipredict/internal/prediction"
)

// Counters uses the field names of the remote analytics endpoint.
type Counters struct {
	TotalPredictions int64 `json:"total_predictions" validate:"gte=0"`
	Compatible       int64 `json:"compatible" validate:"gte=0"`
	NonCompatible    int64 `json:"non_compatible" validate:"gte=0"`
	LowRisk          int64 `json:"low_risk" validate:"gte=0"`
	MediumRisk       int64 `json:"medium_risk" validate:"gte=0"`
	HighRisk         int64 `json:"high_risk" validate:"gte=0"`
	TotalVisitors    int64 `json:"total_visitors" validate:"gte=0"`
}

// Add counts one successful prediction.
func (c *Counters) Add(out prediction.Outcome) {
	c.TotalPredictions++
	if out.Compatible {
		c.Compatible++
	} else {
		c.NonCompatible++
	}
	switch out.RiskLevel {
	case prediction.RiskLow:
		c.LowRisk++
	case prediction.RiskMedium:
		c.MediumRisk++
	default:
		c.HighRisk++
	}
}

type Recorder interface {
	RecordPrediction(ctx context.Context, userID string, out prediction.Outcome) error
	// RegisterVisitor counts a user the first time it is seen.
	RegisterVisitor(ctx context.Context, userID string) error
	Counters(ctx context.Context) (Counters, error)
}

type MemoryRecorder struct {
	mu       sync.Mutex
	counters Counters
	visitors map[string]struct{}
	byUser   map[string]int64
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		visitors: make(map[string]struct{}),
		byUser:   make(map[string]int64),
	}
}

func (r *MemoryRecorder) RecordPrediction(_ context.Context, userID string, out prediction.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters.Add(out)
	if userID != "" {
		r.byUser[userID]++
	}
	return nil
}

func (r *MemoryRecorder) RegisterVisitor(_ context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.visitors[userID]; seen {
		return nil
	}
	r.visitors[userID] = struct{}{}
	r.counters.TotalVisitors++
	return nil
}

func (r *MemoryRecorder) Counters(context.Context) (Counters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters, nil
}
