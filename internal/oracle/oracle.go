// Package oracle provides the text-classification capability used for
// business categorization, operational-status judgment, and entity
// resolution. Every call has a pure, deterministic, offline fallback: engine
// output never depends on the remote service being reachable, only on its
// precision.
package oracle

import (
	"context"
	"time"
)

// Confidence values are on a 0-100 scale throughout.

// Classification is the result of a Classify call.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the result of an Analyze call.
type Analysis struct {
	BusinessType string   `json:"business_type"`
	KeyFeatures  []string `json:"key_features,omitempty"`
	Confidence   float64  `json:"confidence"`
}

// Status is the result of an OperationalStatus call.
type Status struct {
	IsOperational bool    `json:"is_operational"`
	Confidence    float64 `json:"confidence"`
}

// Resolution is the result of a ResolveEntity call.
type Resolution struct {
	IsSame     bool    `json:"is_same"`
	Confidence float64 `json:"confidence"`
}

// Oracle is the classification capability consumed by the filter, profiler,
// scorer, and deduplicator. Implementations must never fail: when the
// backing service is unavailable they return a lower-confidence heuristic
// result instead of an error. The error return exists for context
// cancellation only.
type Oracle interface {
	// Classify returns a business category for free text.
	Classify(ctx context.Context, text, name string) (Classification, error)

	// Analyze returns a business-type judgment with key features.
	Analyze(ctx context.Context, text, name string) (Analysis, error)

	// OperationalStatus judges whether text describes an already-operating
	// business rather than a new opening. types lists the dataset/type
	// labels of the records behind the text; date is the most recent
	// activity, when known.
	OperationalStatus(ctx context.Context, text string, types []string, name string, date *time.Time) (Status, error)

	// ResolveEntity judges whether two (address, name) pairs are the same
	// physical business.
	ResolveEntity(ctx context.Context, addrA, nameA, addrB, nameB string) (Resolution, error)
}

// FallbackCounter is implemented by oracles that track how often they served
// a heuristic fallback instead of a remote result.
type FallbackCounter interface {
	FallbackCount() int64
}
