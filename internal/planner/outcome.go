package planner

// Kind tags how a planning run ended.
type Kind int

const (
	// KindCompleted: the reasoning service produced a final answer within the iteration bound.
	KindCompleted Kind = iota
	// KindIterationLimit: the iteration budget ran out before a final answer.
	KindIterationLimit
	// KindReasoningError: the reasoning service failed or returned something unusable.
	KindReasoningError
	// KindStoreUnavailable: the data store could not be reached.
	KindStoreUnavailable
	// KindCanceled: the caller canceled or the overall timeout expired.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindIterationLimit:
		return "iteration_limit"
	case KindReasoningError:
		return "reasoning_error"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome is the result of one planning run. Answer is set only for KindCompleted;
// Err carries the internal cause for the failure kinds and is never shown to users.
type Outcome struct {
	Kind       Kind
	Answer     string
	Iterations int
	Err        error
}
