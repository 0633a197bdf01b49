package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"simplegen/internal/genconfig"
	"simplegen/internal/generator"
	"simplegen/internal/runtime"
	"simplegen/internal/service"
	"simplegen/pkg/types"
)

// echoRuntime backs a real generator for conversation tests.
type echoRuntime struct{}

type echoSession struct{}

func (echoRuntime) Load(modelPath string, opts runtime.LoadOptions) (runtime.Session, error) {
	return echoSession{}, nil
}

func (echoSession) Generate(ctx context.Context, prompts []string, p genconfig.Params) ([]string, error) {
	outs := make([]string, len(prompts))
	for i := range prompts {
		outs[i] = "reply"
	}
	return outs, nil
}

func (echoSession) Warmup(ctx context.Context) error { return nil }
func (echoSession) Close() error                     { return nil }

type mockService struct {
	models []types.Model
	status types.StatusResponse
	ready  bool
	genErr error
	gen    *generator.Generator
}

func (m *mockService) ListModels() []types.Model    { return append([]types.Model(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if m.genErr != nil {
		return types.GenerateResponse{}, m.genErr
	}
	outs := make([]string, len(req.Texts))
	for i, txt := range req.Texts {
		outs[i] = "out:" + txt
	}
	return types.GenerateResponse{Model: "m1", Outputs: outs, BatchSize: len(outs)}, nil
}

func (m *mockService) NewConversation(ctx context.Context, modelID, system string) (string, *generator.Conversation, error) {
	if m.genErr != nil {
		return "", nil, m.genErr
	}
	return "m1", m.gen.NewConversation(system), nil
}

func (m *mockService) Say(ctx context.Context, modelID string, conv *generator.Conversation, message string, opts ...genconfig.Option) (string, error) {
	if m.genErr != nil {
		return "", m.genErr
	}
	return conv.Say(ctx, message, opts...)
}

func newMockService(t *testing.T) *mockService {
	t.Helper()
	gen, err := generator.New(context.Background(), generator.Config{
		ModelPath: filepath.Join(t.TempDir(), "m.gguf"),
		Logger:    zerolog.Nop(),
	}, echoRuntime{})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	t.Cleanup(func() { _ = gen.Close() })
	return &mockService{gen: gen}
}

func TestModelsHandler(t *testing.T) {
	svc := newMockService(t)
	svc.models = []types.Model{{ID: "m1"}, {ID: "m2"}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestStatusHandler(t *testing.T) {
	svc := newMockService(t)
	svc.status = types.StatusResponse{BudgetMB: 10}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.BudgetMB != 10 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	svc := newMockService(t)
	svc.ready = true
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := newMockService(t)
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	svc := newMockService(t)
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateReturnsOutputs(t *testing.T) {
	r := NewMux(newMockService(t))
	w := postJSON(r, "/generate", `{"texts":["a","b"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Outputs) != 2 || resp.Outputs[0] != "out:a" {
		t.Fatalf("unexpected outputs: %v", resp.Outputs)
	}
}

func TestGenerateBadJSON(t *testing.T) {
	r := NewMux(newMockService(t))
	w := postJSON(r, "/generate", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateUnsupportedMediaType(t *testing.T) {
	r := NewMux(newMockService(t))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"texts":["a"]}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateTextsRequired(t *testing.T) {
	r := NewMux(newMockService(t))
	w := postJSON(r, "/generate", `{"texts":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty texts, got %d", w.Code)
	}
}

func TestGenerateBodyTooLarge(t *testing.T) {
	r := NewMux(newMockService(t))
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"model not found", service.ErrModelNotFound("nope"), http.StatusNotFound},
		{"too busy", service.ErrTooBusy("m1"), http.StatusTooManyRequests},
		{"dependency unavailable", service.ErrDependencyUnavailable("no backend"), http.StatusServiceUnavailable},
		{"generic", io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newMockService(t)
			svc.genErr = tc.err
			r := NewMux(svc)
			w := postJSON(r, "/generate", `{"texts":["a"]}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d want=%d", w.Code, tc.want)
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body.Code != tc.want {
				t.Fatalf("body code=%d want=%d", body.Code, tc.want)
			}
		})
	}
}

func TestChatMessageRequired(t *testing.T) {
	r := NewMux(newMockService(t))
	w := postJSON(r, "/chat", `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", w.Code)
	}
}

func TestChatSessionFlow(t *testing.T) {
	r := NewMux(newMockService(t))

	w := postJSON(r, "/chat", `{"system":"Be terse.","message":"Hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var first types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("json: %v", err)
	}
	if first.Session == "" {
		t.Fatalf("expected a session id")
	}
	if first.Reply != "reply" {
		t.Fatalf("unexpected reply: %q", first.Reply)
	}
	// system + user + assistant
	if len(first.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(first.Messages))
	}

	w = postJSON(r, "/chat", `{"session":"`+first.Session+`","message":"Again"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var second types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("json: %v", err)
	}
	if second.Session != first.Session {
		t.Fatalf("expected session continuity: %s vs %s", second.Session, first.Session)
	}
	if len(second.Messages) != 5 {
		t.Fatalf("expected 5 messages after second turn, got %d", len(second.Messages))
	}
}

func TestChatUnknownSessionStartsNew(t *testing.T) {
	r := NewMux(newMockService(t))
	w := postJSON(r, "/chat", `{"session":"does-not-exist","message":"Hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Session == "" || resp.Session == "does-not-exist" {
		t.Fatalf("expected a fresh session id, got %q", resp.Session)
	}
}
