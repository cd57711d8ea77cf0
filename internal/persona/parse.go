package persona

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dwhitley/personabench/internal/domain"
)

type decisionReply struct {
	Action    string  `json:"action"`
	StakeUSD  float64 `json:"stake_usd"`
	Rationale string  `json:"rationale"`
}

// parseReply extracts the decision JSON from a raw model completion. Models
// wrap JSON in code fences or prose often enough that we locate the outermost
// object instead of unmarshalling the whole reply.
func parseReply(raw string) (domain.Action, float64, string, error) {
	body := extractJSON(raw)
	if body == "" {
		return "", 0, "", fmt.Errorf("persona: no JSON object in reply: %w", domain.ErrInvalidDecision)
	}

	var r decisionReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return "", 0, "", fmt.Errorf("persona: unmarshal reply: %v: %w", err, domain.ErrInvalidDecision)
	}

	action := domain.Action(strings.ToUpper(strings.TrimSpace(r.Action)))
	if !action.Valid() {
		return "", 0, "", fmt.Errorf("persona: unknown action %q: %w", r.Action, domain.ErrInvalidDecision)
	}

	stake := r.StakeUSD
	switch action {
	case domain.ActionSkip:
		stake = 0
	default:
		if stake <= 0 {
			return "", 0, "", fmt.Errorf("persona: %s with stake %.2f: %w", action, stake, domain.ErrInvalidDecision)
		}
	}
	return action, stake, strings.TrimSpace(r.Rationale), nil
}

// extractJSON returns the first balanced top-level JSON object in s, or "".
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
