package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"

	"orion/transport"
)

func TestSpeak(t *testing.T) {
	wav := []byte("RIFFxxxxWAVEfake-audio")
	var gotBody speakRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tts/speak" {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	c := NewClient(transport.New(srv.URL))
	out, err := c.Speak(context.Background(), "hello there")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(wav) {
		t.Errorf("got %q, want raw WAV bytes", out)
	}
	if gotBody.Text != "hello there" || !gotBody.Stream {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestSpeakServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no engine", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(transport.New(srv.URL))
	if _, err := c.Speak(context.Background(), "hi"); !transport.IsStatus(err, http.StatusBadGateway) {
		t.Errorf("err = %v, want 502 APIError", err)
	}
}

// The server groups voices by engine: edge entries use the capitalized
// edge-tts fields, piper entries just name and installed.
func TestVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tts/voices" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"edge":[
				{"Name":"Microsoft Aria Online","ShortName":"en-US-AriaNeural","Locale":"en-US","Gender":"Female"},
				{"Name":"Microsoft Ryan Online","ShortName":"en-GB-RyanNeural","Locale":"en-GB","Gender":"Male"}],
			"piper":[{"name":"en_US-amy-medium","installed":true}]}`)
	}))
	defer srv.Close()

	c := NewClient(transport.New(srv.URL))
	voices, err := c.Voices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	edge := voices["edge"]
	if len(edge) != 2 || edge[0].ShortName != "en-US-AriaNeural" || edge[1].Locale != "en-GB" {
		t.Errorf("edge voices = %+v", edge)
	}
	piper := voices["piper"]
	if len(piper) != 1 || piper[0].Name != "en_US-amy-medium" || !piper[0].Installed {
		t.Errorf("piper voices = %+v", piper)
	}
}

func TestUpdateSettings(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/tts/settings" {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(transport.New(srv.URL))
	err := c.UpdateSettings(context.Background(), Settings{Engine: "edge", Voice: "en-US-AriaNeural", Speed: 1.25})
	if err != nil {
		t.Fatal(err)
	}
	if got["engine"] != "edge" || got["speed"] != 1.25 {
		t.Errorf("server received %+v", got)
	}
}

// Unset settings fields stay out of the payload so the server keeps its
// current values.
func TestUpdateSettingsPartial(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(transport.New(srv.URL))
	if err := c.UpdateSettings(context.Background(), Settings{Voice: "en-GB-RyanNeural"}); err != nil {
		t.Fatal(err)
	}
	if got["voice"] != "en-GB-RyanNeural" {
		t.Errorf("server received %+v", got)
	}
	if _, ok := got["engine"]; ok {
		t.Error("unset engine was sent")
	}
	if _, ok := got["speed"]; ok {
		t.Error("unset speed was sent")
	}
}
