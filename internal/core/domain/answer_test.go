package domain

import (
	"encoding/json"
	"testing"
)

func TestParseAnswerClassifiesShapes(t *testing.T) {
	cases := []struct {
		raw  string
		kind AnswerKind
	}{
		{`{"skipped": true}`, AnswerSkipped},
		{`{"values": ["0", "2"]}`, AnswerMultiSelectIndices},
		{`{"values": [1, 2]}`, AnswerMultiSelectIndices},
		{`{"values": ["Alpha", "Beta"]}`, AnswerMultiSelectLabels},
		{`["Alpha"]`, AnswerMultiSelectLabels},
		{`{"value": 3, "label": "Hyvä"}`, AnswerSelectedOption},
		{`4`, AnswerScalar},
		{`"vapaa teksti"`, AnswerScalar},
		{`{"skipped": false}`, AnswerScalar},
	}
	for _, tc := range cases {
		got, err := ParseAnswer([]byte(tc.raw))
		if err != nil {
			t.Fatalf("ParseAnswer(%s) error = %v", tc.raw, err)
		}
		if got.Kind != tc.kind {
			t.Fatalf("ParseAnswer(%s) kind = %s, want %s", tc.raw, got.Kind, tc.kind)
		}
	}
}

func TestParseAnswerRejectsMalformedPayload(t *testing.T) {
	if _, err := ParseAnswer([]byte(`{"values": [`)); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDisplayMultiselectIndicesResolvesOptions(t *testing.T) {
	q := &Question{ID: "q1", QuestionType: QuestionTypeMultiselect, Options: []string{"A", "B", "C"}}
	ans, err := ParseAnswer([]byte(`{"values":["0","2"]}`))
	if err != nil {
		t.Fatalf("ParseAnswer() error = %v", err)
	}
	if got := ans.Display(q); got != "A, C" {
		t.Fatalf("expected %q, got %q", "A, C", got)
	}
}

func TestDisplayIndicesMatchLabelForm(t *testing.T) {
	q := &Question{ID: "q1", QuestionType: QuestionTypeMultiselect, Options: []string{"Tase", "Budjetti", "Sopimukset"}}
	byIndex := MultiSelectIndicesAnswer(0, 2)
	byLabel := MultiSelectLabelsAnswer("Tase", "Sopimukset")
	if byIndex.Display(q) != byLabel.Display(q) {
		t.Fatalf("index form %q differs from label form %q", byIndex.Display(q), byLabel.Display(q))
	}
}

func TestDisplayIndicesOutOfRangeFallsBackToValues(t *testing.T) {
	q := &Question{ID: "q1", QuestionType: QuestionTypeMultiselect, Options: []string{"A"}}
	ans := MultiSelectIndicesAnswer(0, 5)
	if got := ans.Display(q); got != "0, 5" {
		t.Fatalf("expected raw values, got %q", got)
	}
}

func TestDisplaySkippedAndScalar(t *testing.T) {
	if got := SkippedAnswer().Display(nil); got != SkippedAnswerText {
		t.Fatalf("expected %q, got %q", SkippedAnswerText, got)
	}
	q := &Question{ID: "q2", QuestionType: "scale", AnswerOptions: []AnswerOption{{Label: "Erinomainen", Value: float64(5)}}}
	ans, _ := ParseAnswer([]byte(`5`))
	if got := ans.Display(q); got != "Erinomainen" {
		t.Fatalf("expected option label, got %q", got)
	}
	ans, _ = ParseAnswer([]byte(`3`))
	if got := ans.Display(q); got != "3" {
		t.Fatalf("expected string value, got %q", got)
	}
}

func TestAnswerRoundTripPreservesPayload(t *testing.T) {
	in := Answers{
		"q1": SkippedAnswer(),
		"q2": MultiSelectLabelsAnswer("A", "B"),
		"q3": ScalarAnswer("teksti"),
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Answers
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	again, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(raw) != string(again) {
		t.Fatalf("round trip changed payload:\n%s\n%s", raw, again)
	}
	if !out["q1"].IsSkipped() {
		t.Fatalf("skipped sentinel lost: %+v", out["q1"])
	}
}

func TestAnsweredCountExcludesSkipped(t *testing.T) {
	questions := []Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}}
	answers := Answers{"q1": SkippedAnswer(), "q2": ScalarAnswer(3)}
	if got := answers.AnsweredCount(questions); got != 1 {
		t.Fatalf("expected 1 answered, got %d", got)
	}
}

func TestParseAnswerRejectsNull(t *testing.T) {
	if _, err := ParseAnswer([]byte(`null`)); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStoredNullAnswerCountsAsUnanswered(t *testing.T) {
	var answers Answers
	if err := json.Unmarshal([]byte(`{"q1": null, "q2": "kyllä"}`), &answers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !answers["q1"].IsEmpty() {
		t.Fatalf("expected empty answer, got %+v", answers["q1"])
	}
	if got := answers.AnsweredCount([]Question{{ID: "q1"}, {ID: "q2"}}); got != 1 {
		t.Fatalf("expected 1 answered, got %d", got)
	}
}

func TestDisplayPrefersLabelsThatAreOptions(t *testing.T) {
	q := &Question{ID: "q1", QuestionType: QuestionTypeMultiselect, Options: []string{"10", "20", "1"}}
	ans, err := ParseAnswer([]byte(`{"values":["1"]}`))
	if err != nil {
		t.Fatalf("ParseAnswer() error = %v", err)
	}
	if got := ans.Display(q); got != "1" {
		t.Fatalf("expected option label %q, got %q", "1", got)
	}
	ans, err = ParseAnswer([]byte(`{"values":["2"]}`))
	if err != nil {
		t.Fatalf("ParseAnswer() error = %v", err)
	}
	if got := ans.Display(q); got != "1" {
		t.Fatalf("expected index 2 to resolve to %q, got %q", "1", got)
	}
}
