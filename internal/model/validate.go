package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

// Validate checks the issue's required fields and enum values.
func (i Issue) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("invalid issue: %w", err)
	}
	return nil
}

// Validate checks that the proposal is well formed.
func (p FixProposal) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid proposal: %w", err)
	}
	return nil
}
