package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugin-portal/pkg/observability"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
		wantMsg   string
	}{
		{"success", http.StatusOK, "DEBUG", "Request served"},
		{"client error", http.StatusNotFound, "WARN", "Request rejected"},
		{"server error", http.StatusInternalServerError, "ERROR", "Request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := observability.NewLogger(observability.DebugLevel, &buf)

			var inner *observability.Logger
			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inner = observability.GetLogger(r.Context())
				observability.AddRequestField(r.Context(), "plugin_id", "acme.widget")
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/portal/api/plugins", nil))

			assert.Same(t, logger, inner)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["msg"])
			assert.Equal(t, "/portal/api/plugins", entry["path"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, "acme.widget", entry["plugin_id"])
		})
	}
}
