package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
)

// classify maps an extraction error onto the error taxonomy and decides
// whether later strategies are worth trying. Fatal failures (video gone,
// private, region-locked) make every other URL-based strategy pointless;
// bot-detection challenges and transient network trouble do not, since a
// different client profile may well get through.
func classify(err error) (kind ErrorKind, retryable bool) {
	if err == nil {
		return KindNetworkFailure, true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkFailure, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetworkFailure, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "sign in to confirm", "confirm you're not a bot", "captcha", "login_required", "login required"):
		return KindAccessRestricted, true
	case containsAny(msg, "too many requests", "429", "rate limit"):
		return KindAccessRestricted, true
	case containsAny(msg, "private", "members-only", "age restricted", "age-restricted", "not available in your country", "region"):
		return KindAccessRestricted, false
	case containsAny(msg, "unavailable", "does not exist", "removed", "terminated", "not found"):
		return KindNotFound, false
	case containsAny(msg, "no audio formats", "unsupported", "invalid characters in video id", "video id"):
		return KindUnsupported, false
	case containsAny(msg, "timeout", "timed out", "connection re", "unexpected eof", "temporary failure", "no such host"):
		return KindNetworkFailure, true
	default:
		// Unknown extraction errors behave like transient upstream trouble:
		// another client profile may still succeed.
		return KindNetworkFailure, true
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
