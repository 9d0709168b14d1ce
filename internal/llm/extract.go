package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// fencedBlockPattern matches the first markdown code block, with or without a json tag.
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Extract recovers a JSON value embedded in free-form model output.
//
// The first fenced code block, if any, replaces the text. The candidate then
// starts at whichever of '{' or '[' occurs first and ends at the last
// occurrence of the matching closer. Returns false when there is no candidate
// or it does not parse.
func Extract(text string) (json.RawMessage, bool) {
	if m := fencedBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, false
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return nil, false
	}

	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// ExtractValue is Extract decoded into generic Go values. It returns nil
// when nothing could be extracted.
func ExtractValue(text string) any {
	raw, ok := Extract(text)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// DecodeObject extracts a JSON object from text into v. It returns false
// when no object is found or it does not match v's shape.
func DecodeObject(text string, v any) bool {
	raw, ok := Extract(text)
	if !ok || !bytes.HasPrefix(raw, []byte("{")) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
