package ports

import (
	"context"

	"sansfit/domain/sans"
)

// ToolExecutor runs a named tool against the live session and returns the
// textual result handed back to the model. Execution must never panic
// through this boundary; failures come back as error text.
type ToolExecutor interface {
	Execute(name string, input map[string]any) string
	Definitions() []sans.ToolDefinition
}

// ToolTurn is the outcome of one tool-use conversation: the assistant's
// final text plus every tool call it made along the way.
type ToolTurn struct {
	Text        string
	Invocations []sans.ToolInvocation
}

// ToolClient drives a multi-round tool-use conversation with an LLM
// provider. The client sends the history and tool schemas, executes any
// requested tools through exec, and loops until the model produces a
// plain text reply.
type ToolClient interface {
	Converse(ctx context.Context, system string, history []sans.ChatMessage, exec ToolExecutor) (*ToolTurn, error)
}

// ChatClient is a plain single-shot completion with no tool access, used
// when the user has tools switched off.
type ChatClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
