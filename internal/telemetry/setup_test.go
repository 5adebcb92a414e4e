package telemetry

import (
	"context"
	"testing"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "  ", "session-scheduler", false)
	if err != nil {
		t.Fatalf("NewProviders empty endpoint: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil {
		t.Fatal("expected SDK providers for an empty endpoint")
	}
	if err := providers.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown should be a no-op, got %v", err)
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"http://", "http://[invalid"} {
		if _, err := NewProviders(ctx, endpoint, "session-scheduler", false); err == nil {
			t.Errorf("expected error for endpoint %q", endpoint)
		}
	}
}
