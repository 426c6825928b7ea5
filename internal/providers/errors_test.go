package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":           ErrorQuota,
		"429 rate":                     ErrorRate,
		"rate_limit_exceeded":          ErrorRate,
		"maximum context length":       ErrorContext,
		"timeout":                      ErrorTransient,
		"openai generate error 503: x": ErrorTransient,
		"bad request":                  ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := ClassifyError(fmt.Errorf("request failed: %w", context.DeadlineExceeded)); got != ErrorTransient {
		t.Fatalf("deadline: got %s", got)
	}
	if got := ClassifyError(fmt.Errorf("request failed: %w", context.Canceled)); got != ErrorCanceled {
		t.Fatalf("canceled: got %s", got)
	}
}
