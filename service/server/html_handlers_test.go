package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPage(t *testing.T) {
	renderer, err := NewTemplateRenderer(testLogger())
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		available  bool
		wantStatus int
		contains   string
	}{
		{name: "all addresses", available: true, wantStatus: http.StatusOK, contains: "new EventSource(url)"},
		{name: "one address", query: "?address=" + alice, available: true, wantStatus: http.StatusOK, contains: "for " + alice},
		{name: "streaming disabled", available: false, wantStatus: http.StatusOK, contains: "Streaming is not configured"},
		{name: "invalid address", query: "?address=bad-address", available: true, wantStatus: http.StatusBadRequest, contains: "invalid address format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream"+tt.query, nil)
			rec := httptest.NewRecorder()

			handleStreamPage(renderer, tt.available)(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}
