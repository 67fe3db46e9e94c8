package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a model request to run a named function. Arguments holds
// the raw JSON text exactly as the model produced it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message represents a single message in a conversation.
//
// A function-role message carries Name, the function that produced Content.
// An assistant message that carries a FunctionCall has empty Content.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionSpec describes a callable function offered to the model.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Functions   []FunctionSpec `json:"functions,omitempty"`
	Temperature float64        `json:"temperature"`
	// TopP of zero leaves the service default in place.
	TopP float64 `json:"top_p,omitempty"`
	// MaxTokens is nil when no completion ceiling is requested.
	MaxTokens *int     `json:"max_tokens,omitempty"`
	Stop      []string `json:"stop,omitempty"`
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Message      Message
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
