package queue

import "errors"

// ErrInvalidTransition reports an attempt to move a job along an edge the
// state machine does not allow, such as completing a job that is not
// processing or retrying one that has not failed.
var ErrInvalidTransition = errors.New("invalid job status transition")
