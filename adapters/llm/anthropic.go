package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
	"sansfit/ports"
)

// maxToolRounds caps how many times a single user turn may bounce through
// the tool-use loop before giving up.
const maxToolRounds = 8

// AnthropicClient implements ports.ToolClient against the Anthropic
// Messages API, including the tool-use protocol.
type AnthropicClient struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewAnthropicClient creates a tool-capable client.
func NewAnthropicClient(apiKey, model string, maxTokens int, timeout time.Duration) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.ConfigInvalid("missing Anthropic API key")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.ConfigInvalid("missing Anthropic model")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		APIKey:    apiKey,
		BaseURL:   "https://api.anthropic.com",
		Model:     model,
		MaxTokens: maxTokens,
		Timeout:   timeout,
	}, nil
}

// Wire types for the Messages API. Content is always the block form so
// tool_use and tool_result turns round-trip without special cases.
type contentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string                `json:"model"`
	MaxTokens int                   `json:"max_tokens"`
	System    string                `json:"system,omitempty"`
	Messages  []wireMessage         `json:"messages"`
	Tools     []sans.ToolDefinition `json:"tools,omitempty"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Converse sends the conversation with tool schemas attached and services
// tool_use requests through exec until the model settles on a text reply.
func (c *AnthropicClient) Converse(ctx context.Context, system string, history []sans.ChatMessage, exec ports.ToolExecutor) (*ports.ToolTurn, error) {
	messages := make([]wireMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, wireMessage{
			Role:    m.Role,
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}

	turn := &ports.ToolTurn{}
	for round := 0; round < maxToolRounds; round++ {
		resp, err := c.send(ctx, messagesRequest{
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			System:    system,
			Messages:  messages,
			Tools:     exec.Definitions(),
		})
		if err != nil {
			return nil, err
		}

		var text strings.Builder
		var toolUses []contentBlock
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.Text)
			case "tool_use":
				toolUses = append(toolUses, block)
			}
		}

		if len(toolUses) == 0 {
			turn.Text = text.String()
			return turn, nil
		}

		// Execute every requested tool and feed the results back as one
		// user turn of tool_result blocks.
		messages = append(messages, wireMessage{Role: "assistant", Content: resp.Content})
		results := make([]contentBlock, 0, len(toolUses))
		for _, use := range toolUses {
			out := exec.Execute(use.Name, use.Input)
			turn.Invocations = append(turn.Invocations, sans.ToolInvocation{
				ToolName: use.Name,
				Input:    use.Input,
				Result:   out,
			})
			results = append(results, contentBlock{
				Type:      "tool_result",
				ToolUseID: use.ID,
				Content:   out,
			})
		}
		messages = append(messages, wireMessage{Role: "user", Content: results})
	}

	return nil, errors.ExternalServiceError("anthropic",
		fmt.Errorf("too many tool calls: conversation exceeded %d rounds", maxToolRounds))
}

func (c *AnthropicClient) send(ctx context.Context, req messagesRequest) (*messagesResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages request")
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "build messages request")
	}
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: c.Timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.ExternalServiceError("anthropic", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalServiceError("anthropic", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.ExternalServiceError("anthropic",
			fmt.Errorf("http %d: %s", resp.StatusCode, string(respRaw)))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, errors.ExternalServiceError("anthropic", err)
	}
	if decoded.Error != nil {
		return nil, errors.ExternalServiceError("anthropic",
			fmt.Errorf("%s: %s", decoded.Error.Type, decoded.Error.Message))
	}
	return &decoded, nil
}
