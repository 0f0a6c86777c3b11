package der

import (
	"errors"
	"fmt"
)

var (
	// ErrUndefinedMetric is matched by *UndefinedMetricError.
	ErrUndefinedMetric = errors.New("diarization error rate is undefined")
	// ErrAssignment is matched by *AssignmentError.
	ErrAssignment = errors.New("speaker assignment failed")
)

// UndefinedMetricError is returned alongside a report when the reference
// contains no speech but the hypothesis does, so the rate has a zero denominator.
type UndefinedMetricError struct {
	URI        string
	FalseAlarm float64
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("%s: reference has no speech but hypothesis has %.3fs (false alarm only)", e.URI, e.FalseAlarm)
}

func (e *UndefinedMetricError) Is(target error) bool { return target == ErrUndefinedMetric }

// AssignmentError signals a broken invariant in the speaker mapping step.
type AssignmentError struct {
	Reason string
}

func (e *AssignmentError) Error() string {
	return "speaker assignment: " + e.Reason
}

func (e *AssignmentError) Is(target error) bool { return target == ErrAssignment }
