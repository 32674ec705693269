package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTwiML(t *testing.T) {
	body, err := StreamTwiML("wss://example.com/media", "+15550100")
	require.NoError(t, err)
	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<Response><Connect><Stream url="wss://example.com/media"><Parameter name="callerPhone" value="+15550100"></Parameter></Stream></Connect></Response>`,
		string(body))
}

func TestVoiceWebhook(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		want      string
	}{
		{"public url", "https://calls.example.com", `url="wss://calls.example.com/media"`},
		{"request host", "", `url="ws://gateway.local/media"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"From": {"+15550100"}, "CallSid": {"CA1"}}
			req := httptest.NewRequest(http.MethodPost, "http://gateway.local/twilio/voice", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			NewVoiceWebhook(tt.publicURL, "/media", nil).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Contains(t, rec.Body.String(), `value="+15550100"`)
		})
	}
}
