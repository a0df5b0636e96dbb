package ai

import (
	"reflect"
	"testing"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
		want map[string]any
	}{
		{
			name: "fenced json",
			in:   "Sure!\n```json\n{\"a\":1}\n```\nbye",
			ok:   true,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "untagged fence",
			in:   "```\n{\"a\": \"x\"}\n```",
			ok:   true,
			want: map[string]any{"a": "x"},
		},
		{
			name: "brace counted nested",
			in:   `prefix {"a":{"b":1}} suffix`,
			ok:   true,
			want: map[string]any{"a": map[string]any{"b": float64(1)}},
		},
		{
			name: "single quotes",
			in:   "{'action': 'analyze_fertility'}",
			ok:   true,
			want: map[string]any{"action": "analyze_fertility"},
		},
		{
			name: "broken fence with broken first object fails",
			in:   "```json\n{not json}\n``` later {\"a\":2}",
			ok:   false,
		},
		{
			name: "unbalanced",
			in:   `here {"a": {"b": 1}`,
			ok:   false,
		},
		{
			name: "no braces",
			in:   "plain chat reply",
			ok:   false,
		},
		{
			name: "array is not an object",
			in:   "```json\n[1,2]\n```",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply(tt.in)
			if got.Raw != tt.in {
				t.Fatalf("raw text not preserved")
			}
			if got.OK != tt.ok {
				t.Fatalf("ok=%v want %v (%v)", got.OK, tt.ok, got.Object)
			}
			if tt.ok && !reflect.DeepEqual(got.Object, tt.want) {
				t.Fatalf("got %#v want %#v", got.Object, tt.want)
			}
		})
	}
}

func TestParseReplyFirstFenceWins(t *testing.T) {
	in := "```json\n{\"n\":1}\n```\n```json\n{\"n\":2}\n```"
	got := ParseReply(in)
	if !got.OK || got.Object["n"] != float64(1) {
		t.Fatalf("expected first block, got %#v", got.Object)
	}
}

func TestParseReplyFenceFailureUsesBraceScan(t *testing.T) {
	// the fenced body is invalid but the first balanced span outside is valid
	in := "{\"ok\":true} then ```json\n{bad}\n```"
	got := ParseReply(in)
	if !got.OK || got.Object["ok"] != true {
		t.Fatalf("expected brace scan result, got %#v", got)
	}
}

func TestReplyString(t *testing.T) {
	r := ParseReply(`{"action":"analyze_fertility","n":3}`)
	if r.String("action") != "analyze_fertility" {
		t.Fatalf("unexpected action %q", r.String("action"))
	}
	if r.String("n") != "" || r.String("missing") != "" {
		t.Fatalf("non-string keys should be empty")
	}
	if (Reply{}).String("action") != "" {
		t.Fatalf("failed reply should be empty")
	}
}
