package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifierIsTransient(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "target closed", err: errors.New("Protocol error (Page.navigate): Target closed."), want: true},
		{name: "session closed", err: errors.New("Session closed. Most likely the page has been closed."), want: true},
		{name: "connection refused", err: errors.New("connect ECONNREFUSED 127.0.0.1:9222"), want: true},
		{name: "websocket", err: errors.New("WebSocket is not open: readyState 3 (CLOSED)"), want: true},
		{name: "no fcp", err: errors.New("NO_FCP: The page did not paint any content"), want: false},
		{name: "dns", err: errors.New("DNS servers could not resolve the provided domain"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.IsTransient(tt.err))
		})
	}
}

func TestClassifierCustomMarkers(t *testing.T) {
	classifier := NewClassifier("Flaky Thing")

	assert.True(t, classifier.IsTransient(errors.New("oops: flaky thing happened")))
	assert.False(t, classifier.IsTransient(errors.New("Target closed")))
	assert.Equal(t, "flaky thing", classifier.Marker(errors.New("FLAKY THING")))
	assert.Empty(t, classifier.Marker(errors.New("fine")))
}
