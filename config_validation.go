package serialbridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateConfig validates serial port configuration parameters.
// Defaults are not applied here; Open does that first.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	return validationError(getValidator().Struct(cfg))
}

// ValidateOptions validates the bridge tuning knobs on their own, for
// callers that bring their own Handle.
func ValidateOptions(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are nil", ErrInvalidConfig)
	}
	return validationError(getValidator().Struct(opts))
}

// validationError flattens validator output into one ErrInvalidConfig.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("invalid %s %v, must be one of: %s", strings.ToLower(fe.Field()), fe.Value(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid %s %v (%s=%s)", strings.ToLower(fe.Field()), fe.Value(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
