package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Message:      Message{Role: RoleAssistant, Content: "mock response"},
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// newTestServerProvider points an OpenAIProvider at an httptest server and
// returns the decoded body of every request it receives.
func newTestServerProvider(t *testing.T, reply string) (*OpenAIProvider, *[]map[string]any) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	return NewOpenAIProvider("test-key", "gpt-3.5-turbo", srv.URL+"/v1"), &bodies
}

// --- Tests ---

func TestOpenAIProviderMapsFunctionCallResponse(t *testing.T) {
	reply := `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-3.5-turbo-0613",
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": null,
				"function_call": {"name": "get_current_weather", "arguments": "{\"location\":\"Boston, MA\"}"}
			},
			"finish_reason": "function_call"
		}],
		"usage": {"prompt_tokens": 82, "completion_tokens": 18, "total_tokens": 100}
	}`
	p, bodies := newTestServerProvider(t, reply)

	maxTokens := 512
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "What is the weather like in Boston?"},
		},
		Functions: []FunctionSpec{{
			Name:        "get_current_weather",
			Description: "Get the current weather in a given location",
			Parameters:  map[string]any{"type": "object"},
		}},
		MaxTokens: &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Empty(t, resp.Message.Content)
	require.NotNil(t, resp.Message.FunctionCall)
	assert.Equal(t, "get_current_weather", resp.Message.FunctionCall.Name)
	assert.JSONEq(t, `{"location":"Boston, MA"}`, resp.Message.FunctionCall.Arguments)
	assert.Equal(t, 82, resp.InputTokens)
	assert.Equal(t, 18, resp.OutputTokens)
	assert.Equal(t, "function_call", resp.FinishReason)

	require.Len(t, *bodies, 1)
	body := (*bodies)[0]
	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	assert.EqualValues(t, 512, body["max_tokens"])
	assert.Contains(t, body, "temperature", "zero temperature must still be sent")
	assert.NotContains(t, body, "top_p")
	functions, ok := body["functions"].([]any)
	require.True(t, ok)
	require.Len(t, functions, 1)
	assert.Equal(t, "get_current_weather", functions[0].(map[string]any)["name"])
}

func TestOpenAIProviderSendsFunctionMessages(t *testing.T) {
	reply := `{"choices":[{"index":0,"message":{"role":"assistant","content":"It is 72 degrees and sunny."},"finish_reason":"stop"}]}`
	p, bodies := newTestServerProvider(t, reply)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Model: "gpt-4",
		Messages: []Message{
			{Role: RoleUser, Content: "What is the weather like in Boston?"},
			{Role: RoleAssistant, FunctionCall: &FunctionCall{Name: "get_current_weather", Arguments: `{"location":"Boston, MA"}`}},
			{Role: RoleFunction, Name: "get_current_weather", Content: `{"temperature":"72"}`},
		},
		Stop: []string{"\n\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "It is 72 degrees and sunny.", resp.Message.Content)
	assert.Nil(t, resp.Message.FunctionCall)

	body := (*bodies)[0]
	assert.Equal(t, "gpt-4", body["model"])
	assert.NotContains(t, body, "max_tokens")
	assert.NotContains(t, body, "functions")
	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	call := messages[1].(map[string]any)["function_call"].(map[string]any)
	assert.Equal(t, "get_current_weather", call["name"])
	fn := messages[2].(map[string]any)
	assert.Equal(t, "function", fn["role"])
	assert.Equal(t, "get_current_weather", fn["name"])
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	p, _ := newTestServerProvider(t, `{"choices":[]}`)
	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	assert.True(t, errors.Is(err, ErrNoChoices))
}

func TestOpenAIProviderKeepsUnnamedFunctionCall(t *testing.T) {
	reply := `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"model": "gpt-3.5-turbo",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "", "function_call": {"name": "", "arguments": "{}"}},
			"finish_reason": "function_call"
		}]
	}`
	p, _ := newTestServerProvider(t, reply)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Message.FunctionCall)
	assert.Empty(t, resp.Message.FunctionCall.Name)
	assert.Equal(t, "{}", resp.Message.FunctionCall.Arguments)
}

func TestFactoryOpenAIHonorsBaseURL(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")

	provider, err := NewProvider("openai", "gpt-4", srv.URL+"/custom")
	require.NoError(t, err)
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, "/custom/chat/completions", path)
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	for _, p := range []string{"openai", "openrouter"} {
		_, err := NewProvider(p, "some-model", "")
		assert.Error(t, err, "provider %q with missing API key", p)
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model", "")
	assert.Error(t, err)
}

func TestFactoryCreatesProviders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("OLLAMA_HOST", "")

	for _, name := range []string{"openai", "openrouter", "ollama"} {
		provider, err := NewProvider(name, "some-model", "")
		require.NoError(t, err)
		assert.Equal(t, name, provider.Name())
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Message.Content)
	assert.Equal(t, "test", rl.Name())
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	assert.Same(t, Provider(mock), NewRateLimitedProvider(mock, 0))
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		require.NoError(t, err, "request %d", i)
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, mock.CallCount())
}

func TestContextWindow(t *testing.T) {
	w, err := ContextWindow("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 8192, w)

	w, err = ContextWindow("not-a-model")
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Equal(t, DefaultContextWindow, w)
}

func TestMaxOutputTokens(t *testing.T) {
	n, err := MaxOutputTokens("gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Equal(t, 4096, n)

	for _, m := range Models() {
		assert.Positive(t, m.MaxOutputTokens, m.Name)
		assert.LessOrEqual(t, m.MaxOutputTokens, m.ContextWindow, m.Name)
	}

	n, err = MaxOutputTokens("not-a-model")
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Equal(t, DefaultContextWindow, n)
}

func TestModelsSortedByPrice(t *testing.T) {
	models := Models()
	require.NotEmpty(t, models)
	for i := 1; i < len(models); i++ {
		prev := models[i-1].InputPerMillion + models[i-1].OutputPerMillion
		cur := models[i].InputPerMillion + models[i].OutputPerMillion
		assert.LessOrEqual(t, prev, cur)
	}
	assert.Equal(t, "gpt-4o-mini", models[0].Name)
}

func TestEstimateCost(t *testing.T) {
	// gpt-4o: $2.50/1M input, $10/1M output
	assert.InDelta(t, 12.5, EstimateCost("gpt-4o", 1_000_000, 1_000_000), 0.01)
	assert.Zero(t, EstimateCost("unknown-model", 1000, 500))
}
