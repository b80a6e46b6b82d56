package analysis

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSentimentAnalysisFailed    = errors.New("sentiment analysis failed")
	ErrImageAnalysisFailed        = errors.New("image analysis failed")
	ErrUnrecognizedSentimentLabel = errors.New("unrecognized sentiment label")
	ErrTimeout                    = errors.New("upstream request timed out")
)

// Error represents a categorized upstream analysis failure.
//
// Kind is one of the Err* sentinels above; StatusCode and Body are set when
// the service answered with a non-success response.
type Error struct {
	Kind       error
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := "analysis failed"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}

	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError creates a categorized analysis error wrapping cause.
func NewError(kind error, cause error) error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the failure kind for err when it is categorized.
func KindOf(err error) error {
	if err == nil {
		return nil
	}

	var categorized *Error
	if errors.As(err, &categorized) && categorized.Kind != nil {
		return categorized.Kind
	}

	for _, kind := range []error{ErrSentimentAnalysisFailed, ErrImageAnalysisFailed, ErrUnrecognizedSentimentLabel} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// TransportError tags err with ErrTimeout when ctx hit its deadline.
func TransportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return err
}
