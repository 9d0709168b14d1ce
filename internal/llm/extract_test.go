package llm

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "plain object", input: `{"intent": "GOAL_FORMATION"}`, want: `{"intent": "GOAL_FORMATION"}`, wantOK: true},
		{name: "fenced json", input: "Sure!\n```json\n{\"a\": 1}\n```\nthanks", want: `{"a": 1}`, wantOK: true},
		{name: "fenced without tag", input: "```\n[1, 2]\n```", want: `[1, 2]`, wantOK: true},
		{name: "prose around object", input: `Here you go: {"a": {"b": 2}} hope that helps`, want: `{"a": {"b": 2}}`, wantOK: true},
		{name: "array before object", input: `[{"a": 1}] trailing`, want: `[{"a": 1}]`, wantOK: true},
		{name: "object before array", input: `{"a": [1]} then [2]`, want: `{"a": [1]}`, wantOK: true},
		{name: "greedy to last closer", input: `{"a": 1} and {"b": 2}`, wantOK: false},
		{name: "no brackets", input: "I could not decide.", wantOK: false},
		{name: "malformed", input: `{"a": 1,}`, wantOK: false},
		{name: "unterminated", input: `{"a": 1`, wantOK: false},
		{name: "closer before opener", input: `} {`, wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Extract(%q) ok = %v, want %v (got %s)", tt.input, ok, tt.wantOK, got)
			}
			if ok && string(got) != tt.want {
				t.Fatalf("Extract(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractRoundTrip(t *testing.T) {
	objects := []any{
		map[string]any{"intent": "ORCHESTRATOR", "is_complete": false, "to_user": "hi"},
		map[string]any{"milestones": []any{map[string]any{"id": "m1", "depends_on": []any{}}}},
		[]any{1.0, "two", map[string]any{"three": 3.0}},
	}
	wrappers := []func(string) string{
		func(s string) string { return s },
		func(s string) string { return "```json\n" + s + "\n```" },
		func(s string) string { return "Here is the result:\n" + s + "\nLet me know." },
		func(s string) string { return "```\n" + s + "\n```" },
	}

	for _, obj := range objects {
		data, err := json.Marshal(obj)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		for i, wrap := range wrappers {
			got := ExtractValue(wrap(string(data)))
			if !reflect.DeepEqual(got, obj) {
				t.Errorf("wrapper %d: got %#v, want %#v", i, got, obj)
			}
		}
	}
}

func TestDecodeObject(t *testing.T) {
	var reply struct {
		Intent     string `json:"intent"`
		IsComplete bool   `json:"is_complete"`
	}
	if !DecodeObject("```json\n{\"intent\": \"MOTIVATION\", \"is_complete\": true}\n```", &reply) {
		t.Fatal("expected object to decode")
	}
	if reply.Intent != "MOTIVATION" || !reply.IsComplete {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if DecodeObject(`[1, 2, 3]`, &reply) {
		t.Fatal("arrays must not decode as objects")
	}
	if DecodeObject(`{"is_complete": "yes"}`, &reply) {
		t.Fatal("type mismatch must fail")
	}
}
