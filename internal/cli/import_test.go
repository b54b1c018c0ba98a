package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/importer"
	"exam-session-service/internal/infra/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"#", "Question", "A", "B", "C", "D", "Answer", "Type"},
		{1, "What is 2 + 2?", "3", "4", "5", "", "4"},
		{2, "", "", "", "", "", "oops"},
		{3, "Water boils at 100C at sea level.", "", "", "", "", "true", "tf"},
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, ref, &r))
	}
	path := filepath.Join(t.TempDir(), "arithmetic.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportWorkbookStoresExam(t *testing.T) {
	ctx := context.Background()
	path := writeWorkbook(t)
	store := memory.NewStaticExamLoader(nil)

	err := importWorkbook(ctx, path, importer.Options{ExamID: "exam-xlsx", TimeLimitMinutes: 15}, store, &bytes.Buffer{}, zerolog.Nop())
	require.NoError(t, err)

	exam, err := store.LoadExam(ctx, "exam-xlsx")
	require.NoError(t, err)
	assert.Equal(t, "arithmetic", exam.Title)
	assert.Equal(t, 15, exam.TimeLimitMinutes)
	require.Len(t, exam.Questions, 2)
	assert.Equal(t, domain.TrueFalse, exam.Questions[1].Type)
	assert.Equal(t, "true", exam.Questions[1].CorrectAnswer)
}

func TestImportWorkbookDryRunPrintsExam(t *testing.T) {
	path := writeWorkbook(t)
	var out bytes.Buffer

	err := importWorkbook(context.Background(), path, importer.Options{ExamID: "exam-xlsx"}, nil, &out, zerolog.Nop())
	require.NoError(t, err)

	var exam domain.Exam
	require.NoError(t, json.Unmarshal(out.Bytes(), &exam))
	assert.Equal(t, "exam-xlsx", exam.ID)
	assert.Equal(t, importer.DefaultTimeLimitMinutes, exam.TimeLimitMinutes)
	assert.Len(t, exam.Questions, 2)
}

func TestImportWorkbookMissingFile(t *testing.T) {
	err := importWorkbook(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), importer.Options{}, nil, &bytes.Buffer{}, zerolog.Nop())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
