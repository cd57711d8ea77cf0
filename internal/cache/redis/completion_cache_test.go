package redis

import "testing"

func TestCompletionKeyDistinguishesPromptPair(t *testing.T) {
	base := completionKey("system", "user")
	if base != completionKey("system", "user") {
		t.Fatalf("key must be deterministic")
	}
	if base == completionKey("system", "user2") {
		t.Fatalf("different user prompts must not collide")
	}
	if base == completionKey("system2", "user") {
		t.Fatalf("different system prompts must not collide")
	}
	// The separator prevents boundary ambiguity between the two prompts.
	if completionKey("ab", "c") == completionKey("a", "bc") {
		t.Fatalf("prompt boundary must be part of the key")
	}
}
