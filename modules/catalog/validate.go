package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// SchemaValidationError - parsed data is missing required fields or breaks a declared minimum
type SchemaValidationError struct {
	Task   string
	Fields []string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s response failed validation: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("%s response failed validation on %s: %v", e.Task, strings.Join(e.Fields, ", "), e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// whitespace-only text counts as missing
		if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		// report fields by their JSON names, which match the schema
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate - checks v against its validate tags
func Validate(task string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return &SchemaValidationError{Task: task, Fields: fields, Err: err}
	}
	return &SchemaValidationError{Task: task, Err: err}
}
