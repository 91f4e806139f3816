package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "ParentBased"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestEndSpanNoop(t *testing.T) {
	t.Parallel()
	// The global provider is a no-op until SetupTracing runs; EndSpan must still be safe.
	_, span := Tracer("test").Start(context.Background(), "op")
	EndSpan(span, errors.New("boom"))
	_, span = Tracer("test").Start(context.Background(), "op")
	EndSpan(span, nil)
}
