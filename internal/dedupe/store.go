// Package dedupe provides a short-lived seen-key store used by the
// outcome event recorder to short-circuit repeated deal-closed
// signals before touching the database. It is an optimization only:
// correctness is guaranteed by the unique index on outcome_events.
package dedupe

import "context"

// Store tracks recently processed keys.
type Store interface {
	// Seen reports whether the key was marked recently.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key. Marks expire; callers must not rely on
	// them persisting.
	Mark(ctx context.Context, key string) error
}
