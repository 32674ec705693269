package telephony

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StreamTwiML renders the answer to an incoming call: connect the call's audio
// to streamURL and pass the caller's number as a custom parameter.
func StreamTwiML(streamURL, callerPhone string) ([]byte, error) {
	resp := twimlResponse{
		Connect: twimlConnect{
			Stream: twimlStream{
				URL:        streamURL,
				Parameters: []twimlParameter{{Name: "callerPhone", Value: callerPhone}},
			},
		},
	}
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// VoiceWebhook answers the incoming-call webhook. When PublicURL is empty the
// stream URL is derived from the request host.
type VoiceWebhook struct {
	PublicURL string
	MediaPath string
	logger    orchestrator.Logger
}

func NewVoiceWebhook(publicURL, mediaPath string, logger orchestrator.Logger) *VoiceWebhook {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &VoiceWebhook{PublicURL: publicURL, MediaPath: mediaPath, logger: logger}
}

func (v *VoiceWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	from := r.PostForm.Get("From")
	callSID := r.PostForm.Get("CallSid")

	body, err := StreamTwiML(v.streamURL(r), from)
	if err != nil {
		v.logger.Error("render twiml failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	v.logger.Info("incoming call", "call_sid", callSID, "caller", from)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (v *VoiceWebhook) streamURL(r *http.Request) string {
	if v.PublicURL != "" {
		u, err := url.Parse(v.PublicURL)
		if err == nil {
			switch u.Scheme {
			case "https":
				u.Scheme = "wss"
			case "http":
				u.Scheme = "ws"
			}
			u.Path = strings.TrimSuffix(u.Path, "/") + v.MediaPath
			return u.String()
		}
	}
	scheme := "wss"
	if r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "ws"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: v.MediaPath}).String()
}
