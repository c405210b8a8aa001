package trendwire

import (
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TestHTTPClientUsesOtelTransport verifies the fetcher's HTTP client
// is instrumented with otelhttp.Transport for trace propagation
func TestHTTPClientUsesOtelTransport(t *testing.T) {
	fetcher, _ := newTestFetcher(t, DefaultConfig())

	// Verify the HTTP client's transport is wrapped with otelhttp
	_, ok := fetcher.httpClient.Transport.(*otelhttp.Transport)
	if !ok {
		t.Error("❌ Fetcher HTTP client does not use otelhttp.Transport for trace propagation")
		t.Error("   This will cause traces to 'go dead' when fetching external feeds")
	} else {
		t.Log("✅ Fetcher HTTP client correctly uses otelhttp.Transport")
		t.Log("   Trace context will be propagated when fetching external feeds")
	}
}
