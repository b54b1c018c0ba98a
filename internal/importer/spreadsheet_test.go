package importer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, ref, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

var header = []interface{}{"#", "Question", "A", "B", "C", "D", "Answer", "Type", "Explanation"}

func TestParseWorkbookBuildsExam(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		header,
		{1, "What is the capital of Japan?", "Seoul", "Tokyo", "Bangkok", "", "Tokyo"},
		{2, "The Great Wall is visible from the moon.", "", "", "", "", "False", "tf", "Too narrow."},
		{3, "Which planet is the Red Planet?", "", "", "", "", "Mars", "short"},
	})

	report, err := ParseWorkbook(buf, "uploads/General Knowledge.xlsx", Options{
		NewID: sequentialIDs(),
		Now:   func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	exam := report.Exam
	assert.Equal(t, "id-1", exam.ID)
	assert.Equal(t, "General Knowledge", exam.Title)
	assert.Equal(t, DefaultTimeLimitMinutes, exam.TimeLimitMinutes)
	assert.Equal(t, 2569, exam.Year)
	assert.Equal(t, 3, report.Rows)
	assert.Empty(t, report.Skipped)
	require.Len(t, exam.Questions, 3)

	mcq := exam.Questions[0]
	assert.Equal(t, domain.MultipleChoice, mcq.Type)
	require.Len(t, mcq.Options, 3, "blank option cells are dropped")
	text, ok := mcq.OptionText(mcq.CorrectAnswer)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", text)

	tf := exam.Questions[1]
	assert.Equal(t, domain.TrueFalse, tf.Type)
	assert.Equal(t, "false", tf.CorrectAnswer)
	assert.Equal(t, "Too narrow.", tf.Explanation)

	short := exam.Questions[2]
	assert.Equal(t, domain.ShortAnswer, short.Type)
	assert.Equal(t, "Mars", short.CorrectAnswer)

	require.NoError(t, domain.ValidateExam(exam))
}

func TestParseRowsReportsBadRows(t *testing.T) {
	rows := [][]string{
		{"#", "Question"},
		{"1", "", "A", "B", "", "", "A"},
		{"2", "Pick one", "A", "B", "", "", "C"},
		{},
		{"4", "Valid", "Yes", "No", "", "", "Yes", "mcq"},
		{"5", "Essay", "", "", "", "", "x", "essay"},
	}

	report, err := ParseRows(rows, "checks.xlsx", Options{ExamID: "exam-7", Title: "Checks", TimeLimitMinutes: 15})
	require.NoError(t, err)
	assert.Equal(t, "exam-7", report.Exam.ID)
	assert.Equal(t, "Checks", report.Exam.Title)
	assert.Equal(t, 15, report.Exam.TimeLimitMinutes)
	assert.Equal(t, 4, report.Rows)
	require.Len(t, report.Exam.Questions, 1)
	assert.Equal(t, "Valid", report.Exam.Questions[0].Text)

	require.Len(t, report.Skipped, 3)
	assert.Equal(t, 2, report.Skipped[0].Row)
	assert.Contains(t, report.Skipped[0].Reason, "text is empty")
	assert.Equal(t, 3, report.Skipped[1].Row)
	assert.Contains(t, report.Skipped[1].Reason, "matches no option")
	assert.Equal(t, 6, report.Skipped[2].Row)
}

func TestParseRowsWithoutQuestions(t *testing.T) {
	_, err := ParseRows([][]string{{"#", "Question"}}, "empty.xlsx", Options{})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = ParseRows([][]string{{"#"}, {"1", ""}}, "blank.xlsx", Options{})
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestParseRowsRejectsBadTimeLimit(t *testing.T) {
	rows := [][]string{{"#"}, {"1", "Q", "A", "B", "", "", "A"}}

	_, err := ParseRows(rows, "q.xlsx", Options{TimeLimitMinutes: -5})
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "timeLimitMinutes", cfgErr.Field)
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ParseWorkbook(bytes.NewBufferString("not a zip"), "x.xlsx", Options{})
	assert.Error(t, err)
}
