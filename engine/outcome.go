package engine

// Outcome classifies one bounded attempt.
type Outcome int

const (
	// Accepted ends the loop with a usable result.
	Accepted Outcome = iota
	// RetryableFailure consumes one attempt; the loop continues while budget
	// remains.
	RetryableFailure
	// TerminalFailure ends the loop without a result.
	TerminalFailure
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RetryableFailure:
		return "retry"
	case TerminalFailure:
		return "terminal"
	default:
		return "unknown"
	}
}

// settle maps the outcome of attempt (1-based) to the loop's next state. A
// retryable failure on the last attempt of budget is terminal.
func settle(o Outcome, attempt, budget int) Outcome {
	if o == RetryableFailure && attempt >= budget {
		return TerminalFailure
	}
	return o
}
