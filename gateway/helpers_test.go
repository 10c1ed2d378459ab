package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/haowjy/tandem-llm-go"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubAdapter replays a scripted event sequence and records what it was
// invoked with.
type stubAdapter struct {
	id        tandem.ProviderID
	prefix    string // SupportsModel matches this model-name prefix
	script    []tandem.Event
	needsKey  bool
	invokeErr error

	invoked int
	lastReq *tandem.Request
	lastKey string
}

func (s *stubAdapter) Invoke(ctx context.Context, req *tandem.Request, creds tandem.Credentials) (<-chan tandem.Event, error) {
	s.invoked++
	s.lastReq = req
	s.lastKey = creds[s.id]

	if s.invokeErr != nil {
		return nil, s.invokeErr
	}

	events := make(chan tandem.Event, 10)
	go func() {
		defer close(events)
		for _, ev := range s.script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (s *stubAdapter) Name() tandem.ProviderID { return s.id }

func (s *stubAdapter) SupportsModel(model string) bool {
	return s.prefix != "" && strings.HasPrefix(model, s.prefix)
}

func (s *stubAdapter) RequiresCredential() bool { return s.needsKey }

func reasoningScript() []tandem.Event {
	return []tandem.Event{
		tandem.ReasoningDelta("let me think. "),
		tandem.ReasoningDelta("two plus two is four."),
		tandem.UsageSummary(tandem.Usage{PromptTokens: 10, CompletionTokens: 20, ReasoningTokens: 20}),
		tandem.Done(),
	}
}

func generationScript() []tandem.Event {
	return []tandem.Event{
		tandem.ContentDelta("the answer "),
		tandem.ContentDelta("is four"),
		tandem.UsageSummary(tandem.Usage{PromptTokens: 30, CompletionTokens: 5}),
		tandem.Done(),
	}
}

// newTestServer wires stub adapters behind a default config. A nil cfg gets
// the usual provider names and models.
func newTestServer(cfg *Config, reasoning, generation tandem.Adapter, alternates ...tandem.Adapter) *Server {
	if cfg == nil {
		cfg = &Config{Address: ":0"}
	}
	return New(Options{
		Config:     cfg,
		Reasoning:  reasoning,
		Generation: generation,
		Alternates: alternates,
		Models: map[tandem.ProviderID]string{
			tandem.ProviderDeepSeek:  "deepseek-reasoner",
			tandem.ProviderAnthropic: "claude-sonnet-4-5",
			tandem.ProviderQwen:      "qwen-plus",
		},
	})
}

func postChat(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// sseData extracts the data payloads of an SSE body in order.
func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func credentialed() map[string]string {
	return map[string]string{
		"X-DeepSeek-API-Token":  "sk-ds-test",
		"X-Anthropic-API-Token": "sk-ant-test",
	}
}
