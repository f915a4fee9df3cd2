package transport_test

import (
	"testing"

	"github.com/jrsteele09/scan-portal/transport"
	"github.com/stretchr/testify/require"
)

func TestExtractDetail(t *testing.T) {
	const fallback = "Invalid email or password"

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty body", body: "", want: fallback},
		{name: "detail string", body: `{"detail": "Incorrect email or password", "message": "ignored"}`, want: "Incorrect email or password"},
		{name: "validation list", body: `{"detail": [{"loc": ["body", "email"], "msg": "field required"}, {"msg": "value is not a valid email"}]}`, want: "field required; value is not a valid email"},
		{name: "detail object", body: `{"detail": {"message": "nested"}}`, want: "nested"},
		{name: "message", body: `{"message": "Account locked"}`, want: "Account locked"},
		{name: "error description wins over error", body: `{"error": "invalid_grant", "error_description": "Bad password"}`, want: "Bad password"},
		{name: "error", body: `{"error": "invalid_grant"}`, want: "invalid_grant"},
		{name: "bare string", body: `"Service unavailable"`, want: "Service unavailable"},
		{name: "other values joined in key order", body: `{"b": "second", "a": "first", "n": 4}`, want: "first. second"},
		{name: "object without strings", body: `{"n": 4}`, want: fallback},
		{name: "plain text", body: "Bad Gateway", want: "Bad Gateway"},
		{name: "html page", body: "<html><body>oops</body></html>", want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, transport.ExtractDetail([]byte(tt.body), fallback))
		})
	}
}
