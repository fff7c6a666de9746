package utils

import "fmt"

// CodedError is the error payload returned by the HTTP API.
type CodedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
}

func New(status int, code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}
