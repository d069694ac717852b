// Package fiscal holds the pure domain logic of the certification engine:
// number formatting, content fingerprinting, withholding arithmetic, and the
// error taxonomy shared by the workflow and its callers.
package fiscal

import (
	"errors"
	"fmt"
	"time"
)

// ErrAllocationFailure wraps counter-store faults: the workflow aborted before
// any number was consumed and the certification may be retried as-is.
var ErrAllocationFailure = errors.New("sequence allocation failed")

// ErrDuplicateNumber means the post-allocation existence check found the
// formatted number already in use (a prior crash stranded an allocation).
// The allocated integer is never silently reused — retry with a fresh one.
var ErrDuplicateNumber = errors.New("document number already exists")

// ErrPersistenceFailure is the dangerous state: the document carries a legal
// number but the repository write failed. Surfaced loudly, never swallowed.
var ErrPersistenceFailure = errors.New("persistence failed after numbering")

// ValidationError reports structurally invalid drafts. Recoverable: the user
// must fix the input; nothing durable was touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// ChronologyViolation is returned when a candidate document is dated earlier
// than the latest certified document of the same (series, type). Not retried;
// the caller must correct the date.
type ChronologyViolation struct {
	CandidateDate time.Time
	LatestDate    time.Time
}

func (e *ChronologyViolation) Error() string {
	return fmt.Sprintf("chronology: document date %s precedes latest certified date %s",
		e.CandidateDate.Format("2006-01-02"), e.LatestDate.Format("2006-01-02"))
}

// SideEffectWarning describes one ledger effect that could not be applied.
// It accompanies a successful certification — it never reverts it.
type SideEffectWarning struct {
	EffectID string `json:"effect_id"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}
