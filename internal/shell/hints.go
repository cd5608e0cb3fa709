package shell

import (
	"errors"
	"strings"

	"github.com/dkovalq/pagepilot-cli/internal/llmclient"
)

// Remediation hints appended after an error message. They are advisory and
// never replace the original message.
const (
	hintAuth    = "Hint: provide an API key (set PAGEPILOT_AGENT_API_KEY or agent.api_key in the config file)."
	hintNetwork = "Hint: check that your provider is reachable."
	hintTimeout = "Hint: a command timed out; the page may still be loading."
)

// Case-sensitive substring markers, used only when the error carries no
// structured kind. Matching raw message text is fragile against wording
// changes in the collaborators, so the structured path is always tried first.
var (
	authMarkers    = []string{"API", "key", "token", "auth"}
	networkMarkers = []string{"fetch", "ECONNREFUSED", "network"}
	timeoutMarkers = []string{"timed out", "Timeout"}
)

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// errorKind resolves a structured kind from the error chain, if one exists.
func errorKind(err error) (llmclient.Kind, bool) {
	var llmErr *llmclient.Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind, true
	}
	return "", false
}

// Hints classifies a per-call failure. The connectivity and timeout checks
// are independent; both hints are appended when both apply.
func Hints(err error) []string {
	if err == nil {
		return nil
	}

	if kind, ok := errorKind(err); ok {
		switch kind {
		case llmclient.KindAuth:
			return []string{hintAuth}
		case llmclient.KindNetwork:
			return []string{hintNetwork}
		case llmclient.KindTimeout:
			return []string{hintTimeout}
		default:
			return nil
		}
	}

	msg := err.Error()
	var hints []string
	if containsAny(msg, networkMarkers) {
		hints = append(hints, hintNetwork)
	}
	if containsAny(msg, timeoutMarkers) {
		hints = append(hints, hintTimeout)
	}
	return hints
}

// InitHint classifies a session-initialization failure. The auth markers are
// checked first and short-circuit: a credential problem at startup gets the
// API-key hint even when its message also matches a per-call marker.
func InitHint(err error) []string {
	if err == nil {
		return nil
	}

	if kind, ok := errorKind(err); ok && kind == llmclient.KindAuth {
		return []string{hintAuth}
	}
	if containsAny(err.Error(), authMarkers) {
		return []string{hintAuth}
	}
	return Hints(err)
}
