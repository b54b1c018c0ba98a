package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validExam() Exam {
	return Exam{
		ID:               "exam-1",
		Title:            "Geography",
		TimeLimitMinutes: 10,
		Questions: []Question{
			{
				ID:   "q1",
				Type: MultipleChoice,
				Text: "What is the capital of Japan?",
				Options: []Option{
					{ID: "seoul", Text: "Seoul"},
					{ID: "tokyo", Text: "Tokyo"},
				},
				CorrectAnswer: "tokyo",
			},
			{
				ID:            "q2",
				Type:          ShortAnswer,
				Text:          "Which planet is known as the Red Planet?",
				CorrectAnswer: "Mars",
			},
		},
	}
}

func TestValidateExamAcceptsWellFormedExam(t *testing.T) {
	require.NoError(t, ValidateExam(validExam()))
}

func TestValidateExamWithoutQuestionsIsNotFound(t *testing.T) {
	exam := validExam()
	exam.Questions = nil

	err := ValidateExam(exam)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExamNotFound))
}

func TestValidateExamRejectsNonPositiveTimeLimit(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		exam := validExam()
		exam.TimeLimitMinutes = minutes

		var cfgErr *ConfigurationError
		require.ErrorAs(t, ValidateExam(exam), &cfgErr)
		assert.Equal(t, "timeLimitMinutes", cfgErr.Field)
	}
}

func TestValidateExamRejectsBrokenAnswerKey(t *testing.T) {
	exam := validExam()
	exam.Questions[0].CorrectAnswer = "kyoto"

	var cfgErr *ConfigurationError
	require.ErrorAs(t, ValidateExam(exam), &cfgErr)
	assert.Equal(t, "questions[0].correctAnswer", cfgErr.Field)
}

func TestValidateExamRejectsDuplicateOptionIDs(t *testing.T) {
	exam := validExam()
	exam.Questions[0].Options = append(exam.Questions[0].Options, Option{ID: "tokyo", Text: "Tokyo again"})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, ValidateExam(exam), &cfgErr)
	assert.Equal(t, "questions[0].options", cfgErr.Field)
}

func TestValidateExamRejectsUnknownType(t *testing.T) {
	exam := validExam()
	exam.Questions[1].Type = "essay"

	var cfgErr *ConfigurationError
	require.ErrorAs(t, ValidateExam(exam), &cfgErr)
	assert.Contains(t, cfgErr.Field, "type")
}

func TestValidateExamRejectsBlankShortAnswerReference(t *testing.T) {
	exam := validExam()
	exam.Questions[1].CorrectAnswer = "   "

	var cfgErr *ConfigurationError
	require.ErrorAs(t, ValidateExam(exam), &cfgErr)
}

func TestQuestionTypeDecodesLegacyTags(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{"id":"q1","type":"tf","text":"Sky is blue"}`), &q))
	assert.Equal(t, TrueFalse, q.Type)

	err := json.Unmarshal([]byte(`{"id":"q1","type":"essay"}`), &q)
	assert.Error(t, err)
}
