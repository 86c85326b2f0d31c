package model

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by ports.RunStore when a run id has no
// matching record.
var ErrRunNotFound = errors.New("pipeline run not found")

// ErrorKind is the closed set of error kinds a stage can terminate with.
type ErrorKind string

const (
	ErrKindTransport       ErrorKind = "transport"
	ErrKindRateLimited     ErrorKind = "rate_limited"
	ErrKindBadResponse     ErrorKind = "bad_response"
	ErrKindParseError      ErrorKind = "parse_error"
	ErrKindOverflow        ErrorKind = "overflow"
	ErrKindBudgetExhausted ErrorKind = "budget_exhausted"
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindCancelled       ErrorKind = "cancelled"
)

// Stage identifies which pipeline stage produced a StageError.
type Stage string

const (
	StageAccountResolve Stage = "account_resolve"
	Stage1Acquire       Stage = "stage1_acquire"
	Stage2Validate      Stage = "stage2_validate"
	Stage3Qualify       Stage = "stage3_qualify"
	Stage4Sink          Stage = "stage4_sink"
)

// StageError is the one terminal error a stage may record, per spec: a
// stage records at most one terminal error and still returns whatever
// valid partial output it produced.
type StageError struct {
	Stage   Stage
	Kind    ErrorKind
	Message string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
}

// NewStageError builds a StageError, formatting Message like fmt.Sprintf.
func NewStageError(stage Stage, kind ErrorKind, format string, args ...interface{}) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsStageError unwraps err into a *StageError, following the error chain
// via errors.As so wrapper types that embed a *StageError still resolve.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
