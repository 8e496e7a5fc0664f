package service

import "fmt"

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func taskNotFound() error {
	return &NotFoundError{Resource: "Task"}
}

func commentNotFound() error {
	return &NotFoundError{Resource: "Comment"}
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}
