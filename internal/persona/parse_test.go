package persona

import (
	"errors"
	"testing"

	"github.com/dwhitley/personabench/internal/domain"
)

func TestParseReplyPlainJSON(t *testing.T) {
	action, stake, rationale, err := parseReply(`{"action": "BUY_YES", "stake_usd": 20, "rationale": "underpriced"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if action != domain.ActionBuyYes || stake != 20 || rationale != "underpriced" {
		t.Fatalf("got %s/%.2f/%q", action, stake, rationale)
	}
}

func TestParseReplyFencedAndPadded(t *testing.T) {
	raw := "Sure, here's my decision:\n```json\n" +
		`{"action": "buy_no", "stake_usd": 5.5, "rationale": "too confident"}` +
		"\n```\nGood luck!"
	action, stake, _, err := parseReply(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if action != domain.ActionBuyNo || stake != 5.5 {
		t.Fatalf("got %s/%.2f", action, stake)
	}
}

func TestParseReplySkipZeroesStake(t *testing.T) {
	action, stake, _, err := parseReply(`{"action": "SKIP", "stake_usd": 10, "rationale": "no edge"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if action != domain.ActionSkip || stake != 0 {
		t.Fatalf("skip must carry zero stake, got %s/%.2f", action, stake)
	}
}

func TestParseReplyRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no json", "I would buy YES at these prices."},
		{"unknown action", `{"action": "HEDGE", "stake_usd": 10}`},
		{"zero stake buy", `{"action": "BUY_YES", "stake_usd": 0}`},
		{"negative stake", `{"action": "BUY_NO", "stake_usd": -3}`},
		{"malformed json", `{"action": "BUY_YES", "stake_usd": }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, _, err := parseReply(tc.raw); !errors.Is(err, domain.ErrInvalidDecision) {
				t.Fatalf("expected ErrInvalidDecision, got %v", err)
			}
		})
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	raw := `prefix {"action": "SKIP", "stake_usd": 0, "rationale": "prices look like {weird}"} suffix`
	body := extractJSON(raw)
	if body != `{"action": "SKIP", "stake_usd": 0, "rationale": "prices look like {weird}"}` {
		t.Fatalf("unexpected extraction: %q", body)
	}
}
