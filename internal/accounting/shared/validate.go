package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs struct tag validation and reports the first failing
// field as a FieldError wrapping ErrValidation.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := fieldErrs[0]
	return NewFieldError(fieldPath(fe.Namespace()), fmt.Errorf("%w: failed %q rule", ErrValidation, fe.Tag()))
}

// fieldPath trims the root struct name: "CreateInput.Lines[0].AccountID" -> "Lines[0].AccountID".
func fieldPath(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
