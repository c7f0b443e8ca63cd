package domain

// Outcome classifies the result of one fetch attempt against an upstream source.
type Outcome int

const (
	// OutcomeSuccess means the source returned at least one data point.
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty means the request succeeded but the window holds no
	// observations. Not an error: stations go offline for parts of their history.
	OutcomeEmpty
	// OutcomeRetryable means a transient failure: throttling, a server error,
	// or a transport problem. Retrying the same request may succeed.
	OutcomeRetryable
	// OutcomeFatal means the request was rejected structurally or retries were
	// exhausted. Repeating the identical request cannot succeed.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FetchOutcome is the tagged result of one network attempt. Transient
// conditions are data, not errors: they travel through this type instead of
// an error return so the retry layer can route on them explicitly.
type FetchOutcome struct {
	Outcome Outcome
	Rows    []ObservationRow // populated only for OutcomeSuccess
	Reason  string           // populated only for failures
}

// Success wraps parsed rows in a successful outcome.
func Success(rows []ObservationRow) FetchOutcome {
	return FetchOutcome{Outcome: OutcomeSuccess, Rows: rows}
}

// Empty marks a window with no observations.
func Empty() FetchOutcome {
	return FetchOutcome{Outcome: OutcomeEmpty}
}

// Retryable marks a transient failure worth retrying.
func Retryable(reason string) FetchOutcome {
	return FetchOutcome{Outcome: OutcomeRetryable, Reason: reason}
}

// Fatal marks a failure that retrying the same request cannot fix.
func Fatal(reason string) FetchOutcome {
	return FetchOutcome{Outcome: OutcomeFatal, Reason: reason}
}
