// Package speech is the client side of the server's text-to-speech
// endpoints: synthesis, voice listing, and engine settings.
package speech

import (
	"bytes"
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"orion/transport"
)

type Client struct {
	t *transport.Client
}

func NewClient(t *transport.Client) *Client {
	return &Client{t: t}
}

// Voice is one entry in the per-engine voice listing. Edge voices carry
// the capitalized edge-tts fields; piper voices fill Name and Installed
// only.
type Voice struct {
	ShortName string `json:"ShortName"`
	Name      string `json:"Name"`
	Locale    string `json:"Locale"`
	Gender    string `json:"Gender"`
	Installed bool   `json:"installed"`
}

// Settings updates only the fields that are set; the server keeps its
// current value for anything omitted.
type Settings struct {
	Engine string  `json:"engine,omitempty"`
	Voice  string  `json:"voice,omitempty"`
	Speed  float64 `json:"speed,omitempty"`
}

type speakRequest struct {
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
}

// Speak synthesizes text and returns the WAV bytes.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	data, err := json.Marshal(speakRequest{Text: text, Stream: true})
	if err != nil {
		return nil, err
	}
	resp, err := c.t.Do(ctx, http.MethodPost, "/api/tts/speak",
		bytes.NewReader(data), transport.ContentType("application/json"))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Voices returns the available voices keyed by engine name.
func (c *Client) Voices(ctx context.Context) (map[string][]Voice, error) {
	out := map[string][]Voice{}
	if err := c.t.DoJSON(ctx, http.MethodGet, "/api/tts/voices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s Settings) error {
	return c.t.DoJSON(ctx, http.MethodPut, "/api/tts/settings", s, nil)
}
