// Package freshness decides whether the newest backup under a prefix is
// recent enough.
package freshness

import (
	"context"
	"log/slog"
	"time"

	"github.com/mitchross/backup-monitor/internal/backend"
)

// Status is the outcome of a freshness check.
type Status int

const (
	StatusFresh Status = iota
	StatusStale
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is computed once per invocation. Latest and Age are only set when
// Status is not StatusEmpty.
type Result struct {
	Status Status
	Latest backend.Object
	Age    time.Duration
	Cutoff time.Time
	Count  int
}

// Alerting reports whether the result should raise a notification.
func (r Result) Alerting() bool {
	return r.Status != StatusFresh
}

// Latest returns the object with the greatest LastModified. Ties go to the
// greatest key so the choice does not depend on listing order.
func Latest(objects []backend.Object) (backend.Object, bool) {
	if len(objects) == 0 {
		return backend.Object{}, false
	}

	latest := objects[0]
	for _, o := range objects[1:] {
		switch {
		case o.LastModified.After(latest.LastModified):
			latest = o
		case o.LastModified.Equal(latest.LastModified) && o.Key > latest.Key:
			latest = o
		}
	}
	return latest, true
}

// Evaluate classifies a listing against now - threshold. An object modified
// exactly at the cutoff is fresh.
func Evaluate(objects []backend.Object, threshold time.Duration, now time.Time) Result {
	cutoff := now.Add(-threshold)
	result := Result{Cutoff: cutoff, Count: len(objects)}

	latest, ok := Latest(objects)
	if !ok {
		result.Status = StatusEmpty
		return result
	}

	result.Latest = latest
	result.Age = now.Sub(latest.LastModified)
	if latest.LastModified.Before(cutoff) {
		result.Status = StatusStale
	} else {
		result.Status = StatusFresh
	}
	return result
}

// Checker lists a prefix and evaluates it.
type Checker struct {
	lister backend.Lister
	logger *slog.Logger
}

func NewChecker(lister backend.Lister, logger *slog.Logger) *Checker {
	return &Checker{lister: lister, logger: logger}
}

// Check lists objects under prefix and evaluates them. Listing errors are
// returned unchanged.
func (c *Checker) Check(ctx context.Context, prefix string, threshold time.Duration, now time.Time) (Result, error) {
	c.logger.Info("searching for backups", "prefix", prefix, "threshold", threshold)

	objects, err := c.lister.ListObjects(ctx, prefix)
	if err != nil {
		return Result{}, err
	}

	result := Evaluate(objects, threshold, now)
	if result.Status == StatusEmpty {
		c.logger.Info("no backups found", "prefix", prefix, "cutoff", result.Cutoff)
	} else {
		c.logger.Info("latest backup found",
			"key", result.Latest.Key,
			"last_modified", result.Latest.LastModified.Format(time.DateTime),
			"objects", result.Count,
			"status", result.Status.String())
	}
	return result, nil
}
