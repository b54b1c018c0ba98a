package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		value := QuestionType(fl.Field().String())
		for _, t := range QuestionTypes {
			if t == value {
				return true
			}
		}
		return false
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateExam checks that an exam can back a learner session. An exam with
// no questions is reported as ErrExamNotFound; every other defect is a
// *ConfigurationError.
func ValidateExam(exam Exam) error {
	if len(exam.Questions) == 0 {
		return fmt.Errorf("%w: exam %q has no questions", ErrExamNotFound, exam.ID)
	}
	if err := validate.Struct(exam); err != nil {
		return toConfigurationError(err)
	}

	seen := make(map[string]struct{}, len(exam.Questions))
	for i, q := range exam.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if _, dup := seen[q.ID]; dup {
			return NewConfigurationError(field+".id", fmt.Sprintf("duplicates question id %q", q.ID))
		}
		seen[q.ID] = struct{}{}
		if err := validateAnswerKey(field, q); err != nil {
			return err
		}
	}
	return nil
}

func validateAnswerKey(field string, q Question) error {
	optionIDs := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, dup := optionIDs[opt.ID]; dup {
			return NewConfigurationError(field+".options", fmt.Sprintf("duplicates option id %q", opt.ID))
		}
		optionIDs[opt.ID] = struct{}{}
	}

	switch q.Type {
	case MultipleChoice, TrueFalse:
		if _, ok := optionIDs[q.CorrectAnswer]; !ok || q.CorrectAnswer == "" {
			return NewConfigurationError(field+".correctAnswer", "must reference one of the question's options")
		}
	case ShortAnswer:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return NewConfigurationError(field+".correctAnswer", "must not be blank")
		}
	}
	return nil
}

// ValidateStruct runs tag validation on request payloads.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// FieldErrors flattens tag validation failures into field -> message pairs.
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = describe(fe)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

func toConfigurationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return NewConfigurationError("exam", err.Error())
	}
	fe := ve[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return NewConfigurationError(field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "question_type":
		return "must be one of multiple_choice, true_false, short_answer"
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
