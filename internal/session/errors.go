package session

import "errors"

// 操作失敗の種類。errors.Is で判定する。
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// Machine-readable reason codes returned to clients.
const (
	CodeDuplicateName        = "duplicate-name"
	CodeUserSubmissionExists = "user-submission-exists"
	CodeUserNotFound         = "user-not-found"
)

// Error is a caller-facing failure. Kind is one of the sentinel errors above.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func notFound(code, msg string) error {
	return &Error{Kind: ErrNotFound, Code: code, Message: msg}
}

func conflict(code, msg string) error {
	return &Error{Kind: ErrConflict, Code: code, Message: msg}
}

func rateLimited(msg string) error {
	return &Error{Kind: ErrRateLimited, Message: msg}
}

// CodeOf returns the reason code of err, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
