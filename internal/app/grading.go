package app

import (
	"strings"

	"exam-session-service/internal/domain"
)

// GradeInput is everything the grading routine reads. Answers must be a
// snapshot; Grade never retains it.
type GradeInput struct {
	SessionID        string
	LearnerID        string
	Exam             domain.Exam
	Answers          map[string]string
	TimeTakenSeconds int
	Trigger          domain.SubmitTrigger
}

// Grade builds the Result for an attempt. It is pure: the same input always
// yields the same Result, and it never fails.
func Grade(in GradeInput) domain.Result {
	perQuestion := make([]domain.QuestionResult, 0, len(in.Exam.Questions))
	score := 0
	for _, q := range in.Exam.Questions {
		answer := in.Answers[q.ID]
		correct := gradeQuestion(q, answer)
		if correct {
			score++
		}
		perQuestion = append(perQuestion, domain.QuestionResult{
			Question:   q,
			UserAnswer: answer,
			IsCorrect:  correct,
		})
	}

	limit := in.Exam.TimeLimitSeconds()
	taken := in.TimeTakenSeconds
	if taken > limit {
		taken = limit
	}
	if taken < 0 {
		taken = 0
	}

	return domain.Result{
		SessionID:        in.SessionID,
		ExamID:           in.Exam.ID,
		LearnerID:        in.LearnerID,
		PerQuestion:      perQuestion,
		Score:            score,
		Total:            len(in.Exam.Questions),
		TimeTakenSeconds: taken,
		TimeLimitSeconds: limit,
		Trigger:          in.Trigger,
	}
}

// gradeQuestion dispatches on the closed set of question types. Unknown
// types grade as incorrect.
func gradeQuestion(q domain.Question, answer string) bool {
	switch q.Type {
	case domain.MultipleChoice, domain.TrueFalse:
		return gradeChoice(q, answer)
	case domain.ShortAnswer:
		return gradeShortAnswer(q, answer)
	default:
		return false
	}
}

func gradeChoice(q domain.Question, answer string) bool {
	return answer != "" && answer == q.CorrectAnswer
}

func gradeShortAnswer(q domain.Question, answer string) bool {
	got := normalizeAnswer(answer)
	return got != "" && got == normalizeAnswer(q.CorrectAnswer)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
