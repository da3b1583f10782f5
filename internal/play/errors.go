package play

import "errors"

// Playback domain errors. Handlers map these to API error codes.
var (
	// ErrNotPlaying is returned for answer/advance events outside Playing.
	ErrNotPlaying = errors.New("session is not in the playing step")
	// ErrNotLeadCapture is returned for a lead submit outside LeadCapture.
	ErrNotLeadCapture = errors.New("session is not in the lead capture step")
	// ErrWrongQuestion is returned when the answered question is not the
	// one at the session cursor. The flow is strictly forward.
	ErrWrongQuestion = errors.New("question is not the current question")
	// ErrUnknownOption is returned when the option id does not belong to
	// the current question.
	ErrUnknownOption = errors.New("option does not belong to the question")
	// ErrNothingSelected is returned by Advance before any selection was
	// recorded for the current question.
	ErrNothingSelected = errors.New("current question has no selection")
)
