package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/go-narrate/internal/audio"
	"github.com/example/go-narrate/internal/server"
)

func newTestHandler(e *toneEngine, opts ...server.Option) http.Handler {
	return server.NewHandler(newResponder(e), opts...)
}

func postTTS(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := newTestHandler(&toneEngine{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("want status=ok, got %q", body["status"])
	}
	if _, ok := body["version"]; !ok {
		t.Error("want version field in response")
	}
}

// ---------------------------------------------------------------------------
// GET /voices
// ---------------------------------------------------------------------------

func TestVoices_ReturnsCatalogAndAliases(t *testing.T) {
	h := newTestHandler(&toneEngine{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var got struct {
		Voices []struct {
			ID       string `json:"id"`
			LangCode string `json:"lang_code"`
		} `json:"voices"`
		Aliases []struct {
			Alias  string `json:"alias"`
			MapsTo string `json:"maps_to"`
		} `json:"aliases"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if len(got.Voices) != 5 {
		t.Fatalf("want 5 built-in voices, got %d", len(got.Voices))
	}
	if got.Voices[0].ID != "af_heart" || got.Voices[0].LangCode != "a" {
		t.Errorf("unexpected first voice: %+v", got.Voices[0])
	}
	var british string
	for _, a := range got.Aliases {
		if a.Alias == "british" {
			british = a.MapsTo
		}
	}
	if british != "bf_emma" {
		t.Errorf("alias british = %q; want bf_emma", british)
	}
}

// ---------------------------------------------------------------------------
// POST /tts
// ---------------------------------------------------------------------------

func TestTTS_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&toneEngine{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tts", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

func TestTTS_ReturnsMissingBodyAs400(t *testing.T) {
	h := newTestHandler(&toneEngine{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tts", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if decodeError(t, rec) == "" {
		t.Error("want non-empty error field")
	}
}

func TestTTS_ReturnsBlankTextAs400(t *testing.T) {
	engine := &toneEngine{n: 10}
	h := newTestHandler(engine)

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`} {
		rec := postTTS(h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d", body, rec.Code)
		}
	}
	if n := len(engine.Calls()); n != 0 {
		t.Fatalf("engine called %d times for blank text", n)
	}
}

func TestTTS_StreamsWAVOnSuccess(t *testing.T) {
	const samples = 30000
	h := newTestHandler(&toneEngine{n: samples})

	rec := postTTS(h, `{"text":"Hello world.","voice":"en"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("want Content-Type audio/wav, got %q", ct)
	}
	if !rec.Flushed {
		t.Error("want the response to be flushed per chunk")
	}

	c, err := audio.ParseContainer(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseContainer: %v", err)
	}
	if c.Frames() != samples {
		t.Errorf("frames = %d; want %d", c.Frames(), samples)
	}
}

func TestTTS_EngineErrorReturns500(t *testing.T) {
	h := newTestHandler(&toneEngine{err: errEngineFailed})

	rec := postTTS(h, `{"text":"Hello."}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "engine failed") {
		t.Errorf("error = %q; want engine message", msg)
	}
}

func TestTTS_NoAudioReturns500(t *testing.T) {
	h := newTestHandler(&toneEngine{n: 0})

	rec := postTTS(h, `{"text":"Hello."}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /metrics
// ---------------------------------------------------------------------------

func TestMetrics_MountedWhenConfigured(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "narrate_requests_total 1\n")
	})

	with := newTestHandler(&toneEngine{}, server.WithMetricsHandler(metrics))
	rec := httptest.NewRecorder()
	with.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "narrate_requests_total") {
		t.Fatalf("want metrics body, got %d %q", rec.Code, rec.Body.String())
	}

	without := newTestHandler(&toneEngine{})
	rec = httptest.NewRecorder()
	without.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404 without a metrics handler, got %d", rec.Code)
	}
}
