// ABOUTME: Question catalog entries describing what the engine may ask
// ABOUTME: Each question has an ident, prompt, input kind and optional allowed values
package models

import (
	"errors"
	"fmt"
)

// InputKind describes how an answer is entered
type InputKind string

const (
	InputNumber       InputKind = "number"
	InputSingleChoice InputKind = "single_choice"
	InputMultiChoice  InputKind = "multi_choice"
	InputFreeText     InputKind = "free_text"
)

// Question is one entry of the question catalog
type Question struct {
	Ident         string    `json:"ident" yaml:"ident"`
	Prompt        string    `json:"prompt" yaml:"prompt"`
	InputKind     InputKind `json:"input" yaml:"input"`
	AllowedValues []string  `json:"allowed,omitempty" yaml:"allowed,omitempty"`
}

// Validate checks that the question is well formed
func (q Question) Validate() error {
	if q.Ident == "" {
		return errors.New("question ident cannot be empty")
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %q has no prompt", q.Ident)
	}
	switch q.InputKind {
	case InputNumber, InputFreeText:
	case InputSingleChoice, InputMultiChoice:
		if len(q.AllowedValues) == 0 {
			return fmt.Errorf("choice question %q has no allowed values", q.Ident)
		}
	default:
		return fmt.Errorf("question %q has invalid input kind %q", q.Ident, q.InputKind)
	}
	return nil
}

// Allows reports whether value is one of the allowed values.
// An empty allowed set accepts anything.
func (q Question) Allows(value string) bool {
	if len(q.AllowedValues) == 0 {
		return true
	}
	for _, v := range q.AllowedValues {
		if v == value {
			return true
		}
	}
	return false
}
