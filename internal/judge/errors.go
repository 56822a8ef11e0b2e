package judge

import "errors"

// Judge failure modes. Both are recoverable: the scorer falls back to
// the deterministic secondary scorer instead of dropping the message.
var (
	// ErrJudgeUnavailable covers network errors, timeouts and rejected
	// credentials - the judge could not be consulted at all.
	ErrJudgeUnavailable = errors.New("judge unavailable")

	// ErrMalformedResponse means the judge answered but the payload did
	// not contain a numeric score in [0,10].
	ErrMalformedResponse = errors.New("judge returned malformed response")
)
