package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/health"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/pipeline"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/progress"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/resilience"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/voicestore"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
	cloningmock "github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning/mock"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract"
	extractmock "github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract/mock"
)

// testEnv bundles the server with the doubles behind it.
type testEnv struct {
	srv       *Server
	handler   http.Handler
	extractor *extractmock.Extractor
	cloner    *cloningmock.Client
	store     *voicestore.Store
	bus       *progress.Broadcaster
	orch      *pipeline.Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	extractor := &extractmock.Extractor{ExtractResult: "/tmp/nonexistent-sample.mp3"}
	cloner := &cloningmock.Client{CreateVoiceResult: "v_123", SynthesizeResult: []byte("mpeg-bytes")}
	bus := progress.NewBroadcaster()

	store, err := voicestore.Open(filepath.Join(t.TempDir(), "voices.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	orch, err := pipeline.New(pipeline.Config{
		Extractor:     extractor,
		Cloner:        cloner,
		Broadcaster:   bus,
		MaxConcurrent: 1,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	srv, err := New(Config{
		Orchestrator: orch,
		Store:        store,
		Cloner:       cloner,
		Broadcaster:  bus,
		Health:       health.New(health.StoreChecker(store)),
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	return &testEnv{
		srv:       srv,
		handler:   srv.Handler(),
		extractor: extractor,
		cloner:    cloner,
		store:     store,
		bus:       bus,
		orch:      orch,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// ---- jobs ----

func TestSubmitJob(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/jobs", `{"url":"https://example.com/video/abc"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[submitResponse](t, rec)
	if resp.JobID == "" {
		t.Error("expected a job ID")
	}

	// The snapshot endpoint knows the job immediately.
	rec = e.do(t, "GET", "/jobs/"+resp.JobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decodeBody[jobResponse](t, rec)
	if snap.JobID != resp.JobID || snap.URL != "https://example.com/video/abc" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSubmitJob_BadRequests(t *testing.T) {
	e := newTestEnv(t)

	if rec := e.do(t, "POST", "/jobs", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
	if rec := e.do(t, "POST", "/jobs", `{"url":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty url: status = %d", rec.Code)
	}
}

func TestJobStatus_Unknown(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, "GET", "/jobs/no-such-id", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelJob(t *testing.T) {
	e := newTestEnv(t)
	started := make(chan struct{})
	e.extractor.ExtractFn = func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	rec := e.do(t, "POST", "/jobs", `{"url":"https://example.com/v"}`)
	id := decodeBody[submitResponse](t, rec).JobID
	<-started

	if rec := e.do(t, "DELETE", "/jobs/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d", rec.Code)
	}

	// Wait for the terminal transition, then a second cancel conflicts.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.orch.Job(id)
		if err == nil && snap.State.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec := e.do(t, "DELETE", "/jobs/"+id, ""); rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}

	if rec := e.do(t, "DELETE", "/jobs/none", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown cancel status = %d, want 404", rec.Code)
	}
}

func TestProgress_UnknownJob(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, "GET", "/jobs/none/progress", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProgress_Websocket(t *testing.T) {
	e := newTestEnv(t)

	const holdURL = "https://example.com/hold"
	running := make(chan struct{})
	release := make(chan struct{})
	e.extractor.ExtractFn = func(ctx context.Context, url string) (string, error) {
		if url == holdURL {
			close(running)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return "", &extract.Error{Kind: extract.KindNoAudioStream, Detail: "no audio stream found"}
	}

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	// Occupy the single extraction slot so the target job publishes nothing
	// until the websocket is subscribed (the broadcaster has no replay).
	e.do(t, "POST", "/jobs", `{"url":"`+holdURL+`"}`)
	<-running

	rec := e.do(t, "POST", "/jobs", `{"url":"https://example.com/v"}`)
	id := decodeBody[submitResponse](t, rec).JobID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/jobs/" + id + "/progress"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(5 * time.Second)
	for e.bus.SubscriberCount(id) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("progress handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)

	var msgs []string
	for {
		var m progressMessage
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			// Stream ends with a normal closure once the job is terminal.
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("read: %v", err)
			}
			break
		}
		if m.JobID != id {
			t.Errorf("frame for wrong job: %+v", m)
		}
		msgs = append(msgs, m.Message)
	}

	want := []string{
		"Starting voice cloning process...",
		"Error: no audio stream found",
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %v, want %v", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msg[%d] = %q, want %q", i, msgs[i], want[i])
		}
	}
}

// ---- voices ----

func TestSaveVoice(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The upstream voice is renamed to match the saved name.
	if len(e.cloner.RenameVoiceCalls) != 1 {
		t.Fatalf("rename calls = %d, want 1", len(e.cloner.RenameVoiceCalls))
	}
	call := e.cloner.RenameVoiceCalls[0]
	if call.VoiceID != "v_123" || call.Name != "alice" {
		t.Errorf("unexpected rename call: %+v", call)
	}

	if id, err := e.store.Lookup("alice"); err != nil || id != "v_123" {
		t.Errorf("store binding = %q, %v", id, err)
	}
}

func TestSaveVoice_RenameFailureIsNonFatal(t *testing.T) {
	e := newTestEnv(t)
	e.cloner.RenameVoiceErr = &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: "503"}

	rec := e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 despite rename failure", rec.Code)
	}
}

func TestSaveVoice_Validation(t *testing.T) {
	e := newTestEnv(t)

	if rec := e.do(t, "POST", "/voices", `{"voice_id":"v_1"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d", rec.Code)
	}
	if rec := e.do(t, "POST", "/voices", `{"name":"bob"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing voice_id: status = %d", rec.Code)
	}

	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)
	if rec := e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_456"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate name: status = %d", rec.Code)
	}
}

func TestListVoices(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)

	rec := e.do(t, "GET", "/voices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[listVoicesResponse](t, rec)
	if len(resp.Voices) != 1 || resp.Voices["alice"] != "v_123" {
		t.Errorf("voices = %v", resp.Voices)
	}
}

func TestDeleteVoice(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)

	rec := e.do(t, "DELETE", "/voices/alice", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	// Upstream delete attempted with the bound ID.
	if len(e.cloner.DeleteVoiceCalls) != 1 || e.cloner.DeleteVoiceCalls[0].VoiceID != "v_123" {
		t.Errorf("unexpected delete calls: %+v", e.cloner.DeleteVoiceCalls)
	}
	if _, err := e.store.Lookup("alice"); err == nil {
		t.Error("binding still present after delete")
	}

	if rec := e.do(t, "DELETE", "/voices/alice", ""); rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestSpeak(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)

	rec := e.do(t, "POST", "/voices/alice/speak", `{"text":"hello there"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "mpeg-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	if len(e.cloner.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d", len(e.cloner.SynthesizeCalls))
	}
	if c := e.cloner.SynthesizeCalls[0]; c.VoiceID != "v_123" || c.Text != "hello there" {
		t.Errorf("unexpected synthesize call: %+v", c)
	}
}

func TestSpeak_ErrorMapping(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)

	cases := []struct {
		kind cloning.Kind
		want int
	}{
		{cloning.KindQuotaExceeded, http.StatusTooManyRequests},
		{cloning.KindInvalidText, http.StatusBadRequest},
		{cloning.KindUnknownVoice, http.StatusNotFound},
		{cloning.KindUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		e.cloner.SynthesizeErr = &cloning.Error{Kind: tc.kind, Detail: "x"}
		rec := e.do(t, "POST", "/voices/alice/speak", `{"text":"hi"}`)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
	}
}

func TestSpeak_UnknownName(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, "POST", "/voices/ghost/speak", `{"text":"hi"}`); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSpeak_OpenBreakerReturns503(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/voices", `{"name":"alice","voice_id":"v_123"}`)

	// Swap in a guarded client with a tripped breaker.
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "test", MaxFailures: 1, ResetTimeout: time.Hour,
	})
	_ = cb.Execute(func() error {
		return &cloning.Error{Kind: cloning.KindUpstreamUnavailable}
	}, nil)
	e.srv.cloner = resilience.NewGuardedClient(e.cloner, cb)

	rec := e.do(t, "POST", "/voices/alice/speak", `{"text":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// ---- ops endpoints ----

func TestServiceInfo(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	info := decodeBody[serviceInfo](t, rec)
	if info.Service != "voicecloned" || info.Version != "test" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestOpsEndpoints(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := e.do(t, "GET", path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
