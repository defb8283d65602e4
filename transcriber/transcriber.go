package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"orion/transport"
)

// NetworkMetrics carries the request timings the transport client
// records for one upload.
type NetworkMetrics struct {
	TTFB       time.Duration
	Total      time.Duration
	ConnReused bool
}

type Result struct {
	Text     string
	Language string
	Duration float64
	Metrics  *NetworkMetrics
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Server transcribes by uploading encoded audio to the orion server's
// speech endpoint. Uploads go through the shared authenticated client,
// so they carry the current bearer token and respect the auth gate.
type Server struct {
	client *transport.Client
	lang   string
}

func NewServer(client *transport.Client) *Server {
	return &Server{client: client}
}

func (s *Server) Name() string            { return "server" }
func (s *Server) SetLanguage(lang string) { s.lang = lang }
func (s *Server) GetLanguage() string     { return s.lang }

func (s *Server) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	go s.client.Warm(context.Background())
	if cfg.Language != "" {
		s.SetLanguage(cfg.Language)
	}
	return newBatchSession(cfg, s.transcribe)
}

type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (s *Server) transcribe(audioData []byte, format string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}
	if s.lang != "" {
		writer.WriteField("language", s.lang)
	}
	writer.Close()

	resp, err := s.client.Do(context.Background(), http.MethodPost, "/api/stt/transcribe", &body,
		transport.ContentType(writer.FormDataContentType()))
	if err != nil {
		return nil, err
	}

	var tResp transcribeResponse
	if err := json.Unmarshal(resp.Body, &tResp); err != nil {
		return nil, fmt.Errorf("transcribe response parse error: %w", err)
	}

	return &Result{
		Text:     tResp.Text,
		Language: tResp.Language,
		Duration: tResp.Duration,
		Metrics: &NetworkMetrics{
			TTFB:       resp.TTFB,
			Total:      resp.Elapsed,
			ConnReused: resp.ConnReused,
		},
	}, nil
}
