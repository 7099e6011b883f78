package transport

import (
	"errors"
	"fmt"
)

// Error is a rejection reported by the chat platform.
type Error struct {
	Code   int
	Msg    string
	Status int
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat platform error %d: %s (http %d)", e.Code, e.Msg, e.Status)
	}
	return fmt.Sprintf("chat platform error %d: %s", e.Code, e.Msg)
}

// Platform error codes.
const (
	CodeInvalidContent     = 230001
	CodeBotNotInChat       = 230002
	CodeBotAbilityDisabled = 230006
	CodeNoUserPermission   = 230013
	CodeMessageTooLarge    = 230020
	CodeContentTooLong     = 230025
	CodeNoPermission       = 230027
	CodeChatDisbanded      = 232009
	CodeInvalidImageKey    = 234001
	CodeInvalidFileKey     = 234006
	CodeMissingScope       = 99991672
	CodeInvalidToken       = 99991663
)

var nonRetryableCodes = map[int]struct{}{
	CodeInvalidContent:     {},
	CodeBotNotInChat:       {},
	CodeBotAbilityDisabled: {},
	CodeNoUserPermission:   {},
	CodeMessageTooLarge:    {},
	CodeContentTooLong:     {},
	CodeNoPermission:       {},
	CodeChatDisbanded:      {},
	CodeInvalidImageKey:    {},
	CodeInvalidFileKey:     {},
	CodeMissingScope:       {},
}

// IsNonRetryableCode reports whether code is a rejection that repeats on every
// attempt until an operator changes something.
func IsNonRetryableCode(code int) bool {
	_, ok := nonRetryableCodes[code]
	return ok
}

// IsRetryable reports whether err may succeed on a later attempt. Errors that
// are not *Error (network, timeout, open breaker) are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var platformErr *Error
	if errors.As(err, &platformErr) {
		return !IsNonRetryableCode(platformErr.Code)
	}
	return true
}
