// Package provider defines the boundary contract for the external
// video-search/statistics provider. Implementations perform no caching and
// no business logic.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/creator-radar/video-signal-engine-go/internal/model"
)

// ErrorKind classifies provider failures so callers can decide policy.
type ErrorKind int

const (
	// KindTransient covers network failures and retryable upstream errors.
	KindTransient ErrorKind = iota
	// KindQuotaExceeded means the provider reported quota exhaustion.
	// Never retried; the caller layer may choose to serve stale cache.
	KindQuotaExceeded
)

// Error is a typed provider failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Kind == KindQuotaExceeded {
		kind = "quota exceeded"
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded returns true if err is a provider quota-exhaustion error.
func IsQuotaExceeded(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindQuotaExceeded
}

// IsTransient returns true if err is a retryable provider error.
func IsTransient(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindTransient
}

// SearchParams are the inputs of one search page fetch.
type SearchParams struct {
	Query          string
	MaxResults     int64
	PageToken      string
	DurationFilter string // "any", "short", "medium", "long"
	WindowDays     int
}

// SearchPage is one page of search results plus the upstream continuation
// token, empty when the query is exhausted.
type SearchPage struct {
	Videos        []model.CandidateVideo
	NextPageToken string
}

// Client is the provider boundary. Both methods return the quota units the
// call consumed so callers can account for them.
type Client interface {
	Search(ctx context.Context, params SearchParams) (*SearchPage, int, error)
	FetchStatsBatch(ctx context.Context, videoIDs []string) (map[string]model.Stats, int, error)
}
