package domain

import "encoding/json"

// ReviewItem is one question/answer pair as rendered in the results view.
type ReviewItem struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Category   string `json:"category,omitempty"`
	Answer     string `json:"answer"`
	Skipped    bool   `json:"skipped"`
	Answered   bool   `json:"answered"`
}

type Review struct {
	SessionID   string          `json:"session_id"`
	CompanyName string          `json:"company_name"`
	Items       []ReviewItem    `json:"items"`
	Answered    int             `json:"answered"`
	Total       int             `json:"total"`
	Summary     string          `json:"summary"`
	Results     json.RawMessage `json:"results,omitempty"`
}
