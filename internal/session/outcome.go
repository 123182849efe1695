package session

// OutcomeKind is the terminal result of a bootstrap.
type OutcomeKind int

const (
	// OutcomeUnauthenticated means no usable session exists.
	OutcomeUnauthenticated OutcomeKind = iota
	// OutcomeAuthenticated means Session is set.
	OutcomeAuthenticated
	// OutcomeFailed means sign-in was attempted and could not be completed; Err says why.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeFailed:
		return "failed"
	default:
		return "unauthenticated"
	}
}

// Outcome is what a bootstrap resolved to.
type Outcome struct {
	Kind    OutcomeKind
	Session *Session
	Err     error
	// Cached is set when the backend could not be reached and the stored profile was used.
	Cached bool
}

// Unauthenticated builds the no-session outcome.
func Unauthenticated() Outcome {
	return Outcome{Kind: OutcomeUnauthenticated}
}

// Authenticated builds an outcome for s.
func Authenticated(s Session) Outcome {
	return Outcome{Kind: OutcomeAuthenticated, Session: &s}
}

// Failed builds an error outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// IsAuthenticated reports whether the outcome carries a session.
func (o Outcome) IsAuthenticated() bool {
	return o.Kind == OutcomeAuthenticated && o.Session != nil
}
