package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate checks struct tags across Config (network URLs required,
// run_mode/funding.mode enums, the teacher's no-flashloan-on-sandwich
// invariant) and, when run_mode is real, that every secret needed for
// live trading resolved to a non-placeholder value. It returns every
// violation found rather than stopping at the first.
func Validate(cfg *Config) []string {
	var errs []string

	if err := structValidator.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, ValidateProductionSecrets(cfg)...)

	return errs
}
