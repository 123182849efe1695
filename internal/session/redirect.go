package session

import (
	"net/url"
	"sync"
)

// Query parameters that carry an OAuth redirect.
const (
	ParamToken = "token"
	ParamCode  = "code"
	ParamState = "state"
)

// RedirectKind tells what an entry URL carries.
type RedirectKind int

const (
	// RedirectNone means the URL carries no credentials.
	RedirectNone RedirectKind = iota
	// RedirectToken means the backend delivered a bearer token directly.
	RedirectToken
	// RedirectCode means the backend is still exchanging an authorization code.
	RedirectCode
)

func (k RedirectKind) String() string {
	switch k {
	case RedirectToken:
		return "token"
	case RedirectCode:
		return "code"
	default:
		return "none"
	}
}

// Redirect is decided once per bootstrap from the entry URL. Only the fields of its Kind are set.
type Redirect struct {
	Kind  RedirectKind
	Token string
	Code  string
	State string
}

// ParseRedirect classifies u. A token wins over code+state; code without state is ignored.
// State is reported for both kinds so the receiver can check it.
func ParseRedirect(u *url.URL) Redirect {
	if u == nil {
		return Redirect{Kind: RedirectNone}
	}
	q := u.Query()
	if token := q.Get(ParamToken); token != "" {
		return Redirect{Kind: RedirectToken, Token: token, State: q.Get(ParamState)}
	}
	code, state := q.Get(ParamCode), q.Get(ParamState)
	if code != "" && state != "" {
		return Redirect{Kind: RedirectCode, Code: code, State: state}
	}
	return Redirect{Kind: RedirectNone}
}

// Location is the visible entry URL of the application. Replace rewrites it without
// navigating, the way history.replaceState does in a browser.
type Location interface {
	URL() *url.URL
	Replace(u *url.URL)
}

// StaticLocation is an in-memory Location.
type StaticLocation struct {
	mu sync.RWMutex
	u  *url.URL
}

// NewLocation parses raw into a StaticLocation.
func NewLocation(raw string) (*StaticLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &StaticLocation{u: u}, nil
}

// URL returns a copy of the current URL.
func (l *StaticLocation) URL() *url.URL {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.u == nil {
		return nil
	}
	cp := *l.u
	return &cp
}

// Replace sets the current URL.
func (l *StaticLocation) Replace(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *u
	l.u = &cp
}

// String returns the current URL as text.
func (l *StaticLocation) String() string {
	if u := l.URL(); u != nil {
		return u.String()
	}
	return ""
}

// stripQuery removes the query string so a reload does not replay the redirect.
func stripQuery(loc Location) {
	if loc == nil {
		return
	}
	u := loc.URL()
	if u == nil || (u.RawQuery == "" && !u.ForceQuery) {
		return
	}
	u.RawQuery = ""
	u.ForceQuery = false
	loc.Replace(u)
}
