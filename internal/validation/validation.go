// Package validation checks task payloads at the HTTP boundary. The store
// accepts anything the database accepts; these rules mirror the checks the
// frontend form runs before submitting.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"task-tracker-api/internal/models"

	"github.com/go-playground/validator/v10"
)

var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-: ]+$`)

// TaskInput is the writable part of a task as sent by clients.
type TaskInput struct {
	Title       string      `json:"title" validate:"required,tasktitle"`
	Description string      `json:"description" validate:"required"`
	StartDate   models.Date `json:"startDate" validate:"required"`
	EndDate     models.Date `json:"endDate" validate:"required"`
	Status      string      `json:"status"`
	Worklog     string      `json:"worklog"`
	Priority    string      `json:"priority" validate:"required,oneof=High Medium Low"`
	StoryStats  []string    `json:"storyStats"`
}

// Trim removes surrounding whitespace from the free-text fields.
func (in *TaskInput) Trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Worklog = strings.TrimSpace(in.Worklog)
	in.Status = strings.TrimSpace(in.Status)
}

// Task converts the input into a model ready for the store.
func (in TaskInput) Task() models.Task {
	status := in.Status
	if status == "" {
		status = models.StatusNotStarted
	}
	return models.Task{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      status,
		Worklog:     in.Worklog,
		Priority:    in.Priority,
		StoryStats:  models.StoryStats(in.StoryStats),
	}
}

// FieldErrors maps JSON field names to the rule they failed.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, rule := range e {
		parts = append(parts, field+": "+rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(models.Date); ok {
			return d.String()
		}
		return nil
	}, models.Date{})
	_ = v.RegisterValidation("tasktitle", func(fl validator.FieldLevel) bool {
		return titlePattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(dateOrder, TaskInput{})

	return &Validator{validate: v}
}

func dateOrder(sl validator.StructLevel) {
	in := sl.Current().Interface().(TaskInput)
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return
	}
	if in.StartDate.After(in.EndDate.Time) {
		sl.ReportError(in.StartDate, "startDate", "StartDate", "beforeend", "")
	}
}

// Task trims in and checks it, returning FieldErrors on failure.
func (v *Validator) Task(in *TaskInput) error {
	in.Trim()
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
