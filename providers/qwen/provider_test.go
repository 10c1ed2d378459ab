package qwen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/haowjy/tandem-llm-go"
)

func sseServer(t *testing.T, hits *atomic.Int32, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, events <-chan tandem.Event) []tandem.Event {
	t.Helper()
	var out []tandem.Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
		}
	}
}

func testCreds() tandem.Credentials {
	return tandem.Credentials{tandem.ProviderQwen: "sk-dash-test"}
}

func TestInvoke_StreamsNormalizedEvents(t *testing.T) {
	srv := sseServer(t, nil,
		`{"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"la reponse"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":15,"completion_tokens":4,"total_tokens":19}}`,
	)
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	events, err := p.Invoke(context.Background(), &tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleUser, Content: "hello"}},
	}, testCreds())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	got := collect(t, events)
	wantKinds := []tandem.EventKind{
		tandem.EventContentDelta,
		tandem.EventUsage,
		tandem.EventDone,
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantKinds), got)
	}
	for i, want := range wantKinds {
		if got[i].Kind != want {
			t.Errorf("event %d kind = %q, want %q", i, got[i].Kind, want)
		}
	}
	if got[0].Text != "la reponse" {
		t.Errorf("content = %q, want la reponse", got[0].Text)
	}
	if got[1].Usage.TotalTokens != 19 {
		t.Errorf("TotalTokens = %d, want 19", got[1].Usage.TotalTokens)
	}
}

func TestInvoke_RequestShape(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
		gotPath   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	req := &tandem.Request{
		System: "never forwarded",
		Messages: []tandem.Message{
			{Role: tandem.RoleSystem, Content: "filtered out"},
			{Role: tandem.RoleUser, Content: "hello"},
			{Role: tandem.RoleAssistant, Content: "<thinking>\ntrace\n</thinking>"},
		},
		Overrides: &tandem.Overrides{
			Headers: map[string]string{"X-DashScope-DataInspection": "disable"},
			Body: map[string]any{
				"temperature": 0.7,
				"system":      "smuggled",
				"stream":      false,
			},
		},
	}
	events, err := p.Invoke(context.Background(), req, testCreds())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	collect(t, events)

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}

	body := string(gotBody)
	if got := gjson.Get(body, "model").String(); got != "qwen-plus" {
		t.Errorf("model = %q, want the qwen-plus default", got)
	}
	if got := gjson.Get(body, "max_tokens").Int(); got != 8192 {
		t.Errorf("max_tokens = %d, want 8192", got)
	}
	if got := gjson.Get(body, "messages.#").Int(); got != 2 {
		t.Errorf("messages length = %d, system roles must be filtered", got)
	}
	if got := gjson.Get(body, "messages.0.role").String(); got != "user" {
		t.Errorf("first forwarded role = %q, want user", got)
	}
	if gjson.Get(body, "system").Exists() {
		t.Error("system must not reach the wire, by override or otherwise")
	}
	if got := gjson.Get(body, "temperature").Float(); got != 0.7 {
		t.Errorf("temperature = %v, want 0.7 from override", got)
	}
	if !gjson.Get(body, "stream").Bool() {
		t.Error("stream must stay true, overrides cannot disable it")
	}

	if got := gotHeader.Get("Authorization"); got != "Bearer sk-dash-test" {
		t.Errorf("Authorization = %q, want the per-request credential", got)
	}
	if got := gotHeader.Get("X-DashScope-DataInspection"); got != "disable" {
		t.Errorf("X-DashScope-DataInspection = %q, want disable", got)
	}
}

func TestInvoke_MissingCredentialSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := sseServer(t, &hits)
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	_, err := p.Invoke(context.Background(), &tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleUser, Content: "hi"}},
	}, tandem.Credentials{})
	if !errors.Is(err, tandem.ErrMissingCredential) {
		t.Fatalf("Invoke() error = %v, want ErrMissingCredential", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestInvoke_OnlySystemMessagesRejected(t *testing.T) {
	var hits atomic.Int32
	srv := sseServer(t, &hits)
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	_, err := p.Invoke(context.Background(), &tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleSystem, Content: "only system"}},
	}, testCreds())
	if !errors.Is(err, tandem.ErrInvalidRequest) {
		t.Fatalf("Invoke() error = %v, want ErrInvalidRequest", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestInvoke_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API-key provided.","code":"InvalidApiKey"}}`)
	}))
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	_, err := p.Invoke(context.Background(), &tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleUser, Content: "hi"}},
	}, testCreds())
	if err == nil {
		t.Fatal("Invoke() error = nil, want auth failure")
	}

	var provErr *tandem.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Invoke() error = %T, want *tandem.ProviderError", err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", provErr.StatusCode)
	}
	if !provErr.Fatal {
		t.Error("auth rejection must be fatal")
	}
}

func TestInvoke_MalformedFrameIsRecoverable(t *testing.T) {
	srv := sseServer(t, nil,
		`{"choices":[{"index":0,"delta":{"content":"first"}}]}`,
		`half a frame {`,
		`{"choices":[{"index":0,"delta":{"content":"second"}}]}`,
	)
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL})
	events, err := p.Invoke(context.Background(), &tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleUser, Content: "hi"}},
	}, testCreds())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	got := collect(t, events)
	wantKinds := []tandem.EventKind{
		tandem.EventContentDelta,
		tandem.EventError,
		tandem.EventContentDelta,
		tandem.EventDone,
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantKinds), got)
	}
	for i, want := range wantKinds {
		if got[i].Kind != want {
			t.Errorf("event %d kind = %q, want %q", i, got[i].Kind, want)
		}
	}
	if got[1].Fatal() {
		t.Error("malformed frame must not abort the stream")
	}
}

func TestProviderIdentity(t *testing.T) {
	p := NewProvider(Config{})
	if p.Name() != tandem.ProviderQwen {
		t.Errorf("Name() = %q, want %q", p.Name(), tandem.ProviderQwen)
	}
	if !p.RequiresCredential() {
		t.Error("RequiresCredential() = false, want true")
	}

	models := map[string]bool{
		"qwen-plus":         true,
		"qwen-turbo":        true,
		"qwen-max":          true,
		"claude-sonnet-4-5": false,
		"":                  false,
	}
	for model, want := range models {
		if got := p.SupportsModel(model); got != want {
			t.Errorf("SupportsModel(%q) = %v, want %v", model, got, want)
		}
	}
}
