package llm

import (
	"context"

	"sansfit/domain/sans"
	"sansfit/ports"
)

// MockToolClient is a scripted ToolClient for testing. Each entry in
// Script is one model turn: a list of tool calls to make, then the text
// to reply with once the script runs out of calls.
type MockToolClient struct {
	Script   []ScriptedCall
	Reply    string
	Error    error
	Received []sans.ChatMessage
}

// ScriptedCall names one tool the mock "model" decides to invoke.
type ScriptedCall struct {
	Tool  string
	Input map[string]any
}

func (m *MockToolClient) Converse(_ context.Context, _ string, history []sans.ChatMessage, exec ports.ToolExecutor) (*ports.ToolTurn, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	m.Received = append(m.Received, history...)

	turn := &ports.ToolTurn{Text: m.Reply}
	if turn.Text == "" {
		turn.Text = "Done."
	}
	for _, call := range m.Script {
		out := exec.Execute(call.Tool, call.Input)
		turn.Invocations = append(turn.Invocations, sans.ToolInvocation{
			ToolName: call.Tool,
			Input:    call.Input,
			Result:   out,
		})
	}
	return turn, nil
}

// MockChatClient is a canned ChatClient for testing.
type MockChatClient struct {
	Response string
	Error    error
	Prompts  []string
}

func (m *MockChatClient) Complete(_ context.Context, _ string, prompt string) (string, error) {
	if m.Error != nil {
		return "", m.Error
	}
	m.Prompts = append(m.Prompts, prompt)
	if m.Response != "" {
		return m.Response, nil
	}
	return "I can discuss your data, but enable AI Tools to let me change settings.", nil
}
