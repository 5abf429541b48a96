package feedback

import "fmt"

// NotFoundError indicates a rating referenced an unknown execution id.
type NotFoundError struct {
	ExecutionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("execution not found: %s", e.ExecutionID)
}

// InvalidRatingError indicates a rating outside the 1-5 range.
type InvalidRatingError struct {
	Rating int
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("invalid rating %d: must be between 1 and 5", e.Rating)
}

// AlreadyRatedError indicates a second rating attempt on an execution. The
// original rating and its policy update remain untouched; rejecting (rather
// than overwriting) preserves the exactly-once delayed update.
type AlreadyRatedError struct {
	ExecutionID string
	Rating      int
}

func (e *AlreadyRatedError) Error() string {
	return fmt.Sprintf("execution %s already rated %d", e.ExecutionID, e.Rating)
}
