package resolver

import "time"

// Track is the fully resolved, playable description of one audio item. It is
// immutable once returned by the Resolver; the queue entry or now-playing
// slot that holds it is its sole owner.
type Track struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Duration    time.Duration `json:"duration"`
	StreamURL   string        `json:"stream_url"`
	PageURL     string        `json:"page_url"`
	Thumbnail   string        `json:"thumbnail"`
	RequestedBy string        `json:"-"`
	Query       string        `json:"-"`
}

// ErrorKind classifies why a resolution failed.
type ErrorKind int

const (
	KindAccessRestricted ErrorKind = iota
	KindNotFound
	KindNetworkFailure
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindAccessRestricted:
		return "AccessRestricted"
	case KindNotFound:
		return "NotFound"
	case KindNetworkFailure:
		return "NetworkFailure"
	default:
		return "Unsupported"
	}
}

// ResolutionError is returned when every strategy has been exhausted. The
// Suggestion is safe to show to the user as-is.
type ResolutionError struct {
	Kind       ErrorKind
	Suggestion string
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func newResolutionError(kind ErrorKind, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Err: err, Suggestion: suggestionFor(kind)}
}

func suggestionFor(kind ErrorKind) string {
	switch kind {
	case KindAccessRestricted:
		return "YouTube is blocking automated access to this video. Try a search term instead of a URL."
	case KindNotFound:
		return "The video may be private or removed. Check the link or try a search term."
	case KindNetworkFailure:
		return "YouTube did not respond in time. Try again in a moment."
	default:
		return "Only YouTube links or search terms are supported."
	}
}
