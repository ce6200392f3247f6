package domain

import (
	"encoding/json"
	"strings"
)

var resultDefaults = map[string]json.RawMessage{
	"scores":          json.RawMessage(`{}`),
	"findings":        json.RawMessage(`[]`),
	"recommendations": json.RawMessage(`[]`),
	"openQuestions":   json.RawMessage(`[]`),
}

// ApplyResultDefaults fills missing report sections. Non-object payloads pass
// through untouched.
func ApplyResultDefaults(raw json.RawMessage) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return raw
	}
	changed := false
	for key, def := range resultDefaults {
		if v, ok := fields[key]; !ok || string(v) == "null" {
			fields[key] = def
			changed = true
		}
	}
	if !changed {
		return raw
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}

type Recommendation struct {
	Title    string
	Details  string
	Priority string
}

// ExtractRecommendations reads report recommendations, either as plain
// strings or as objects with title/description/priority style keys.
func ExtractRecommendations(raw json.RawMessage) []Recommendation {
	var report map[string]json.RawMessage
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	list, ok := report["recommendations"]
	if !ok {
		for _, nested := range []string{"finalAnalysis", "analysis"} {
			if inner, found := report[nested]; found {
				return ExtractRecommendations(inner)
			}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil
	}

	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Recommendation{Title: text})
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		rec := Recommendation{
			Title:    firstString(obj, "title", "recommendation", "action", "name"),
			Details:  firstString(obj, "description", "details", "rationale"),
			Priority: firstString(obj, "priority", "importance"),
		}
		if rec.Title == "" {
			rec.Title, rec.Details = rec.Details, ""
		}
		if rec.Title != "" {
			out = append(out, rec)
		}
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s := strings.TrimSpace(StringifyValue(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
