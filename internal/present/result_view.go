package present

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"exam-session-service/internal/domain"
)

// ItemState is how one graded question is displayed.
type ItemState string

const (
	StateCorrect   ItemState = "correct"
	StateIncorrect ItemState = "incorrect"
)

// ResultView is a Result shaped for display. Building it never grades.
type ResultView struct {
	SessionID  string     `json:"sessionId"`
	ExamID     string     `json:"examId"`
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	Percentage int        `json:"percentage"`
	TimeTaken  string     `json:"timeTaken"`
	TimeLimit  string     `json:"timeLimit"`
	TimedOut   bool       `json:"timedOut"`
	Items      []ItemView `json:"items"`
}

// ItemView is one question of the review list.
type ItemView struct {
	Number        int       `json:"number"`
	QuestionID    string    `json:"questionId"`
	QuestionText  string    `json:"questionText"`
	State         ItemState `json:"state"`
	UserAnswer    string    `json:"userAnswer"`
	CorrectAnswer string    `json:"correctAnswer,omitempty"`
	Explanation   string    `json:"explanation,omitempty"`
}

// Build turns a Result into its display form. Option ids are shown as option
// text; the correct answer is only included for incorrect items.
func Build(result domain.Result) ResultView {
	view := ResultView{
		SessionID: result.SessionID,
		ExamID:    result.ExamID,
		Score:     result.Score,
		Total:     result.Total,
		TimeTaken: FormatClock(result.TimeTakenSeconds),
		TimeLimit: FormatClock(result.TimeLimitSeconds),
		TimedOut:  result.Trigger == domain.TriggerTimeout,
		Items:     make([]ItemView, 0, len(result.PerQuestion)),
	}
	if result.Total > 0 {
		view.Percentage = int(math.Round(float64(result.Score) * 100 / float64(result.Total)))
	}

	for i, pq := range result.PerQuestion {
		item := ItemView{
			Number:       i + 1,
			QuestionID:   pq.Question.ID,
			QuestionText: pq.Question.Text,
			State:        StateCorrect,
			UserAnswer:   answerLabel(pq.Question, pq.UserAnswer),
			Explanation:  pq.Question.Explanation,
		}
		if !pq.IsCorrect {
			item.State = StateIncorrect
			item.CorrectAnswer = answerLabel(pq.Question, pq.Question.CorrectAnswer)
		}
		view.Items = append(view.Items, item)
	}
	return view
}

func answerLabel(q domain.Question, answer string) string {
	if q.Type.IsChoice() {
		if text, ok := q.OptionText(answer); ok {
			return text
		}
	}
	return answer
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

//go:embed result.html.tmpl
var resultTemplate string

var page = template.Must(template.New("result").Parse(resultTemplate))

// RenderHTML writes the results page.
func RenderHTML(w io.Writer, view ResultView) error {
	return page.Execute(w, view)
}
