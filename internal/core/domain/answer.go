package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind tags the shape an answer was recorded in. Older sessions store
// multiselect answers as option indices, newer ones as labels.
type AnswerKind string

const (
	AnswerScalar             AnswerKind = "scalar"
	AnswerSelectedOption     AnswerKind = "selected_option"
	AnswerMultiSelectLabels  AnswerKind = "multiselect_labels"
	AnswerMultiSelectIndices AnswerKind = "multiselect_indices"
	AnswerSkipped            AnswerKind = "skipped"
)

const (
	SkippedAnswerText    = "[Ohitettu]"
	UnansweredAnswerText = "[Ei vastausta]"
)

type Answer struct {
	Kind AnswerKind

	// Value holds the scalar or the selected option value.
	Value any
	Label string

	// Labels holds the recorded entries as strings for both multiselect kinds.
	Labels  []string
	Indices []int

	raw json.RawMessage
}

func SkippedAnswer() Answer {
	return Answer{Kind: AnswerSkipped}
}

func ScalarAnswer(value any) Answer {
	return Answer{Kind: AnswerScalar, Value: value}
}

func SelectedOptionAnswer(value any, label string) Answer {
	return Answer{Kind: AnswerSelectedOption, Value: value, Label: label}
}

func MultiSelectLabelsAnswer(labels ...string) Answer {
	return Answer{Kind: AnswerMultiSelectLabels, Labels: append([]string{}, labels...)}
}

func MultiSelectIndicesAnswer(indices ...int) Answer {
	labels := make([]string, 0, len(indices))
	for _, idx := range indices {
		labels = append(labels, strconv.Itoa(idx))
	}
	return Answer{Kind: AnswerMultiSelectIndices, Indices: append([]int{}, indices...), Labels: labels}
}

// ParseAnswer classifies a stored answer payload once, at read time. A JSON
// null is not an answer.
func ParseAnswer(data []byte) (Answer, error) {
	var a Answer
	if err := a.UnmarshalJSON(data); err != nil {
		return Answer{}, err
	}
	if a.IsEmpty() {
		return Answer{}, fmt.Errorf("%w: answer is null", ErrInvalidInput)
	}
	return a, nil
}

func (a Answer) IsSkipped() bool {
	return a.Kind == AnswerSkipped
}

// IsEmpty reports a scalar without a value, as read from a stored null.
func (a Answer) IsEmpty() bool {
	return a.Kind == AnswerScalar && a.Value == nil
}

// Raw returns the payload the answer was read from, if any.
func (a Answer) Raw() json.RawMessage {
	return a.raw
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty answer", ErrInvalidInput)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("%w: decode answer: %v", ErrInvalidInput, err)
	}

	out := classifyAnswer(decoded)
	out.raw = append(json.RawMessage{}, trimmed...)
	*a = out
	return nil
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	switch a.Kind {
	case AnswerSkipped:
		return []byte(`{"skipped":true}`), nil
	case AnswerMultiSelectLabels:
		labels := a.Labels
		if labels == nil {
			labels = []string{}
		}
		return json.Marshal(map[string]any{"values": labels})
	case AnswerMultiSelectIndices:
		indices := a.Indices
		if indices == nil {
			indices = []int{}
		}
		return json.Marshal(map[string]any{"values": indices})
	case AnswerSelectedOption:
		payload := map[string]any{"value": a.Value}
		if a.Label != "" {
			payload["label"] = a.Label
		}
		return json.Marshal(payload)
	default:
		return json.Marshal(a.Value)
	}
}

func classifyAnswer(decoded any) Answer {
	switch v := decoded.(type) {
	case map[string]any:
		if skipped, ok := v["skipped"].(bool); ok && skipped {
			return Answer{Kind: AnswerSkipped}
		}
		if values, ok := v["values"].([]any); ok {
			return classifyMultiSelect(values)
		}
		if value, ok := v["value"]; ok {
			label, _ := v["label"].(string)
			return Answer{Kind: AnswerSelectedOption, Value: value, Label: label}
		}
		return Answer{Kind: AnswerScalar, Value: v}
	case []any:
		return classifyMultiSelect(v)
	default:
		return Answer{Kind: AnswerScalar, Value: v}
	}
}

func classifyMultiSelect(values []any) Answer {
	labels := make([]string, 0, len(values))
	indices := make([]int, 0, len(values))
	allIndices := len(values) > 0
	for _, item := range values {
		labels = append(labels, StringifyValue(item))
		idx, ok := asIndex(item)
		if !ok {
			allIndices = false
			continue
		}
		indices = append(indices, idx)
	}
	if allIndices {
		return Answer{Kind: AnswerMultiSelectIndices, Indices: indices, Labels: labels}
	}
	return Answer{Kind: AnswerMultiSelectLabels, Labels: labels}
}

func asIndex(item any) (int, bool) {
	var text string
	switch v := item.(type) {
	case json.Number:
		text = v.String()
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return v, v >= 0
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, false
	}
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Display renders the answer for review against its question. A nil question
// falls back to the recorded values.
func (a Answer) Display(q *Question) string {
	switch a.Kind {
	case AnswerSkipped:
		return SkippedAnswerText
	case AnswerMultiSelectIndices:
		if q != nil && allOptions(a.Labels, q.Options) {
			return strings.Join(a.Labels, ", ")
		}
		if q != nil {
			if labels, ok := resolveIndices(a.Indices, q.Options); ok {
				return strings.Join(labels, ", ")
			}
		}
		return strings.Join(optionLabels(a.Labels, q), ", ")
	case AnswerMultiSelectLabels:
		return strings.Join(optionLabels(a.Labels, q), ", ")
	case AnswerSelectedOption:
		if a.Label != "" {
			return a.Label
		}
		return optionLabel(a.Value, q)
	default:
		return optionLabel(a.Value, q)
	}
}

// allOptions reports whether every value is literally one of the options.
func allOptions(values, options []string) bool {
	if len(values) == 0 || len(options) == 0 {
		return false
	}
	for _, v := range values {
		found := false
		for _, opt := range options {
			if v == opt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func resolveIndices(indices []int, options []string) ([]string, bool) {
	if len(options) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(options) {
			return nil, false
		}
		out = append(out, options[idx])
	}
	return out, true
}

func optionLabels(values []string, q *Question) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, optionLabel(v, q))
	}
	return out
}

func optionLabel(value any, q *Question) string {
	text := StringifyValue(value)
	if q == nil {
		return text
	}
	for _, opt := range q.AnswerOptions {
		if StringifyValue(opt.Value) == text && opt.Label != "" {
			return opt.Label
		}
	}
	return text
}

// StringifyValue renders a decoded JSON value the way the review list shows it.
func StringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, StringifyValue(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	default:
		return fmt.Sprint(v)
	}
}

// Answers maps question id to the recorded answer.
type Answers map[string]Answer

func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AnsweredCount counts questions with a non-skipped, non-empty answer.
func (a Answers) AnsweredCount(questions []Question) int {
	n := 0
	for _, q := range questions {
		ans, ok := a[q.ID]
		if ok && !ans.IsSkipped() && !ans.IsEmpty() {
			n++
		}
	}
	return n
}
