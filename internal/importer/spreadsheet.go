// Package importer converts exam spreadsheets into exams.
//
// Layout of the first sheet, one question per row after a header row:
//
//	A  row number (ignored)
//	B  question text
//	C-F option texts, blank cells dropped
//	G  correct answer: option text, true/false, or reference text
//	H  question type: mcq, tf or short (optional, default mcq)
//	I  explanation (optional)
package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"exam-session-service/internal/domain"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	colText        = 1
	colFirstOption = 2
	colLastOption  = 5
	colAnswer      = 6
	colType        = 7
	colExplanation = 8

	// DefaultTimeLimitMinutes applies when no time limit is given.
	DefaultTimeLimitMinutes = 30
)

// ErrNoQuestions is returned when no row produced a usable question.
var ErrNoQuestions = errors.New("spreadsheet contains no usable questions")

// Options tune how a workbook becomes an exam.
type Options struct {
	ExamID           string
	Title            string
	TimeLimitMinutes int
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// RowError describes a skipped row. Row is the 1-based sheet row.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Report is the outcome of one import.
type Report struct {
	Exam    domain.Exam `json:"exam"`
	Rows    int         `json:"rows"`
	Skipped []RowError  `json:"skipped,omitempty"`
}

// ParseWorkbook reads an .xlsx stream. filename supplies the default title.
func ParseWorkbook(r io.Reader, filename string, opts Options) (Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Report{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Report{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Report{}, fmt.Errorf("read rows: %w", err)
	}
	return ParseRows(rows, filename, opts)
}

// ParseRows converts raw sheet rows, header included.
func ParseRows(rows [][]string, filename string, opts Options) (Report, error) {
	opts = withDefaults(opts, filename)
	if len(rows) < 2 {
		return Report{}, ErrNoQuestions
	}

	report := Report{
		Exam: domain.Exam{
			ID:               opts.ExamID,
			Title:            opts.Title,
			TimeLimitMinutes: opts.TimeLimitMinutes,
			Year:             opts.Now().Year() + 543,
		},
	}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blankRow(row) {
			continue
		}
		report.Rows++
		q, err := parseRow(row, opts.NewID)
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		report.Exam.Questions = append(report.Exam.Questions, q)
	}

	if len(report.Exam.Questions) == 0 {
		return report, ErrNoQuestions
	}
	if err := domain.ValidateExam(report.Exam); err != nil {
		return report, err
	}
	return report, nil
}

func withDefaults(opts Options, filename string) Options {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.ExamID == "" {
		opts.ExamID = opts.NewID()
	}
	if strings.TrimSpace(opts.Title) == "" {
		base := filepath.Base(filename)
		opts.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if opts.TimeLimitMinutes == 0 {
		opts.TimeLimitMinutes = DefaultTimeLimitMinutes
	}
	return opts
}

func parseRow(row []string, newID func() string) (domain.Question, error) {
	q := domain.Question{
		ID:          newID(),
		Text:        cell(row, colText),
		Explanation: cell(row, colExplanation),
		Type:        domain.MultipleChoice,
	}
	if q.Text == "" {
		return domain.Question{}, errors.New("question text is empty")
	}
	if raw := cell(row, colType); raw != "" {
		t, err := domain.ParseQuestionType(raw)
		if err != nil {
			return domain.Question{}, err
		}
		q.Type = t
	}

	answer := cell(row, colAnswer)
	switch q.Type {
	case domain.TrueFalse:
		q.Options = []domain.Option{{ID: "true", Text: "True"}, {ID: "false", Text: "False"}}
		switch strings.ToLower(answer) {
		case "true", "t":
			q.CorrectAnswer = "true"
		case "false", "f":
			q.CorrectAnswer = "false"
		default:
			return domain.Question{}, fmt.Errorf("true/false answer %q is not true or false", answer)
		}
	case domain.ShortAnswer:
		if answer == "" {
			return domain.Question{}, errors.New("short answer has no reference answer")
		}
		q.Options = []domain.Option{}
		q.CorrectAnswer = answer
	default:
		for c := colFirstOption; c <= colLastOption; c++ {
			if text := cell(row, c); text != "" {
				q.Options = append(q.Options, domain.Option{ID: newID(), Text: text})
			}
		}
		if len(q.Options) < 2 {
			return domain.Question{}, errors.New("multiple choice needs at least two options")
		}
		for _, opt := range q.Options {
			if opt.Text == answer {
				q.CorrectAnswer = opt.ID
				break
			}
		}
		if q.CorrectAnswer == "" {
			return domain.Question{}, fmt.Errorf("correct answer %q matches no option", answer)
		}
	}
	return q, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
