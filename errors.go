package credstore

import "errors"

// ErrorCode enumerates every domain failure the engine reports. The set is
// closed; String returns the stable wire identifier.
type ErrorCode uint8

const (
	// CodeUnknown is returned by CodeOf for errors that are not domain errors.
	CodeUnknown ErrorCode = iota
	CodeUsernameTaken
	CodeEmailTaken
	CodeInvalidCredentials
	CodeMissingRefreshToken
	CodeInvalidRefreshToken
	CodeRefreshTokenExpired
	CodeUserNotFound
	CodeInvalidCurrentPassword
	CodeMissingParams
	CodeInvalidResetToken
	CodeCredentialsRequired
	CodeEmailRequired
	errorCodeCount
)

var errorCodeNames = [errorCodeCount]string{
	CodeUnknown:                "unknown",
	CodeUsernameTaken:          "username_taken",
	CodeEmailTaken:             "email_taken",
	CodeInvalidCredentials:     "invalid_credentials",
	CodeMissingRefreshToken:    "missing_refresh_token",
	CodeInvalidRefreshToken:    "invalid_refresh_token",
	CodeRefreshTokenExpired:    "refresh_token_expired",
	CodeUserNotFound:           "user_not_found",
	CodeInvalidCurrentPassword: "invalid_current_password",
	CodeMissingParams:          "missing_params",
	CodeInvalidResetToken:      "invalid_reset_token",
	CodeCredentialsRequired:    "credentials required",
	CodeEmailRequired:          "email required",
}

// String returns the wire identifier, e.g. "username_taken".
func (c ErrorCode) String() string {
	if c >= errorCodeCount {
		return errorCodeNames[CodeUnknown]
	}
	return errorCodeNames[c]
}

// ErrorCodes returns every domain code in declaration order, excluding CodeUnknown.
func ErrorCodes() []ErrorCode {
	out := make([]ErrorCode, 0, errorCodeCount-1)
	for c := CodeUnknown + 1; c < errorCodeCount; c++ {
		out = append(out, c)
	}
	return out
}

// Error is a domain failure. Compare with errors.Is against the Err* values
// or switch on CodeOf(err).
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string { return e.Code.String() }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUsernameTaken          = &Error{Code: CodeUsernameTaken}
	ErrEmailTaken             = &Error{Code: CodeEmailTaken}
	ErrInvalidCredentials     = &Error{Code: CodeInvalidCredentials}
	ErrMissingRefreshToken    = &Error{Code: CodeMissingRefreshToken}
	ErrInvalidRefreshToken    = &Error{Code: CodeInvalidRefreshToken}
	ErrRefreshTokenExpired    = &Error{Code: CodeRefreshTokenExpired}
	ErrUserNotFound           = &Error{Code: CodeUserNotFound}
	ErrInvalidCurrentPassword = &Error{Code: CodeInvalidCurrentPassword}
	ErrMissingParams          = &Error{Code: CodeMissingParams}
	ErrInvalidResetToken      = &Error{Code: CodeInvalidResetToken}
	ErrCredentialsRequired    = &Error{Code: CodeCredentialsRequired}
	ErrEmailRequired          = &Error{Code: CodeEmailRequired}
)

var (
	// ErrEngineNotReady is returned by methods on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBuilderUsed is returned when Build is called twice.
	ErrBuilderUsed = errors.New("builder already used")
)

// CodeOf returns the domain code carried by err, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
