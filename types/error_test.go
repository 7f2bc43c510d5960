package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("dial tcp: refused")
	err := ConnectionError("ListMessages", root)

	if GetErrorCode(err) != ErrConnection {
		t.Fatalf("expected code %s, got %s", ErrConnection, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if !IsTransport(err) {
		t.Fatalf("expected transport classification")
	}
	if got := err.Error(); got != "[CONNECTION_ERROR ListMessages] connection failed: dial tcp: refused" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("initialize: %w", ProtocolError("GetOrCreateProfile", 503, "unavailable"))

	if !IsErrorCode(wrapped, ErrProtocol) {
		t.Fatalf("expected protocol code through wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("5xx protocol errors are retryable")
	}
	if IsRetryable(ProtocolError("x", 404, "missing")) {
		t.Fatalf("4xx protocol errors are not retryable")
	}
}

func TestError_NonTransportCodes(t *testing.T) {
	t.Parallel()

	if IsTransport(NotFoundError("button", "week1_day9")) {
		t.Fatalf("not-found is not a transport failure")
	}
	if IsTransport(errors.New("plain")) {
		t.Fatalf("plain errors carry no code")
	}
	if GetErrorCode(nil) != "" {
		t.Fatalf("nil error has no code")
	}
}
