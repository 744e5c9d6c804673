package convert

import (
	"github.com/vk/tfconvert/internal/fix"
	"github.com/vk/tfconvert/internal/validate"
)

// State is the orchestrator's position in the conversion lifecycle.
type State string

const (
	StatePending       State = "Pending"
	StateConverted     State = "Converted"
	StatePostProcessed State = "PostProcessed"
	StateValidating    State = "Validating"
	StateRetrying      State = "Retrying"
	StateSucceeded     State = "Succeeded"
	StateFailed        State = "Failed"
)

// Terminal reports whether no further attempt may run from this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Attempt records one pass through the convert/fix/validate cycle. Values
// are set once when the attempt finishes and never updated afterwards.
type Attempt struct {
	// Index is 1-based.
	Index        int
	RawOutput    string
	Processed    string
	Result       validate.Result
	FixesApplied []string
}

// MappingStatus classifies how a source resource fared in the target output.
type MappingStatus string

const (
	StatusMapped          MappingStatus = "Mapped"
	StatusPartiallyMapped MappingStatus = "PartiallyMapped"
	StatusUnmapped        MappingStatus = "Unmapped"
)

// ResourceMapping is the per-logical-ID outcome recorded in the report.
type ResourceMapping struct {
	LogicalID     string
	SourceType    string
	Status        MappingStatus
	TargetAddress string
	Fixes         []string
}

// Conversion is the complete outcome of one template run.
type Conversion struct {
	State    State
	Attempts []Attempt
	// Resources holds one entry per source logical ID, in declaration order.
	Resources []ResourceMapping
	// Diagnostics accumulates every diagnostic from every attempt, plus
	// unmapped-resource warnings. Kept even when the run succeeds.
	Diagnostics []validate.Diagnostic
	// Output is the post-processed text of the final attempt.
	Output string

	// changes holds the final attempt's fix pipeline changes, kept for
	// attributing fixes to resource rows during finalize.
	changes []fix.Change
}

// AttemptCount returns the number of attempts the run consumed.
func (c *Conversion) AttemptCount() int {
	return len(c.Attempts)
}

// CountByStatus tallies resource rows per mapping status.
func (c *Conversion) CountByStatus() map[MappingStatus]int {
	counts := make(map[MappingStatus]int, 3)
	for _, res := range c.Resources {
		counts[res.Status]++
	}
	return counts
}
