package usecase

import (
	"fmt"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// BuildReview renders the answers in question order. Skipped answers are
// shown but not counted as answered.
func BuildReview(state AssessmentState) domain.Review {
	items := make([]domain.ReviewItem, 0, len(state.Questions))
	for i := range state.Questions {
		q := &state.Questions[i]
		item := domain.ReviewItem{
			QuestionID: q.ID,
			Question:   q.Question,
			Category:   q.Category,
			Answer:     domain.UnansweredAnswerText,
		}
		if ans, ok := state.Answers[q.ID]; ok && !ans.IsEmpty() {
			item.Answer = ans.Display(q)
			item.Skipped = ans.IsSkipped()
			item.Answered = !item.Skipped
		}
		items = append(items, item)
	}

	answered := state.Answers.AnsweredCount(state.Questions)
	return domain.Review{
		SessionID:   state.SessionID,
		CompanyName: state.CompanyName,
		Items:       items,
		Answered:    answered,
		Total:       len(state.Questions),
		Summary:     ReviewSummary(answered, len(state.Questions)),
		Results:     state.Results,
	}
}

func ReviewSummary(answered, total int) string {
	return fmt.Sprintf("Vastasit %d/%d kysymykseen.", answered, total)
}
