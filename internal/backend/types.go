package backend

import (
	"context"
	"fmt"
	"time"
)

// Object is a single listed backup object.
type Object struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"lastModified"`
}

// Lister lists every object under a prefix. Implementations must return all
// pages; an empty slice means nothing matched.
type Lister interface {
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
}

// ListError is returned when a storage listing call fails. It is treated as
// transient infrastructure trouble; the next scheduled run retries.
type ListError struct {
	Backend string
	Prefix  string
	Err     error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("%s: failed to list objects under %q: %v", e.Backend, e.Prefix, e.Err)
}

func (e *ListError) Unwrap() error {
	return e.Err
}
