package planner

import (
	"fmt"
	"strings"
)

// ValidationError reports a request rejected before generation.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return "invalid meal plan request: " + strings.Join(e.Fields, ", ")
	}
	return fmt.Sprintf("invalid meal plan request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UserNotFoundError is returned when the requesting user has no profile.
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// GenerationError wraps a failure of the model call itself.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("meal plan generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when the model answered but no usable plan could be
// extracted. Raw holds the full model output.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid AI response format: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// MealPlanNotFoundError is returned when no plan with the id belongs to the user.
type MealPlanNotFoundError struct {
	MealPlanID string
	UserID     string
}

func (e *MealPlanNotFoundError) Error() string {
	return fmt.Sprintf("meal plan %s not found for user %s", e.MealPlanID, e.UserID)
}
