package chat

import (
	"context"
	"fmt"
	"strings"

	"sansfit/domain/sans"
	"sansfit/internal"
	"sansfit/internal/session"
	"sansfit/ports"
)

const systemPrompt = `You are a SANS (Small-Angle Neutron Scattering) data analysis assistant integrated into a web application for curve fitting.

You have access to tools that can:
- List and inspect available scattering models (sphere, cylinder, ellipsoid, etc.)
- Load models and configure their parameters
- Run curve fitting optimization
- Enable advanced features like polydispersity and structure factors

When helping users:
1. First understand their sample and experimental setup
2. Suggest appropriate models based on the sample description
3. Guide parameter setup with physically reasonable initial values
4. Run fits and interpret results
5. Suggest refinements if fit quality is poor

Always explain your actions clearly. Use the tools to perform actions rather than just describing what could be done.

The application shows plots and parameter tables that update when you use tools - the user can see changes immediately.`

// enableToolsReply is the canned answer for mutation requests made while
// the tools toggle is off. Sent without contacting the chat API.
const enableToolsReply = "I can make that change automatically if you enable 'AI Tools' in the sidebar. Please toggle it on and send the message again."

// mutationKeywords mark a message as asking for a state change. Trailing
// spaces keep "settings" or "changed" from matching.
var mutationKeywords = []string{
	"set ",
	"change ",
	"update ",
	"enable ",
	"run fit",
	"run-fit",
	"set parameter",
	"set-parameter",
}

// Service turns a user message plus the session's state into an
// assistant reply, invoking registry tools along the way. With no
// tool-capable client configured it degrades to a plain completion
// built from a text summary of the current state.
type Service struct {
	store    *session.Store
	tools    ports.ToolExecutor
	client   ports.ToolClient
	fallback ports.ChatClient
	logger   *internal.Logger
}

func NewService(store *session.Store, tools ports.ToolExecutor, client ports.ToolClient, fallback ports.ChatClient, logger *internal.Logger) *Service {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Service{
		store:    store,
		tools:    tools,
		client:   client,
		fallback: fallback,
		logger:   logger,
	}
}

// WantsMutation reports whether a message looks like a request to change
// state (load a model, tweak a parameter, run a fit).
func WantsMutation(message string) bool {
	lowered := strings.ToLower(message)
	for _, kw := range mutationKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ResponseRequestsEnableTools detects a reply that is prompting the user
// to switch tools on, so the UI can offer an inline enable control.
func ResponseRequestsEnableTools(response string) bool {
	lowered := strings.ToLower(response)
	return strings.Contains(lowered, "enable") && strings.Contains(lowered, "ai tools")
}

// Send appends the user's message to the transcript, produces the
// assistant's reply, records it, and returns it.
func (s *Service) Send(ctx context.Context, userMessage string) (sans.ChatMessage, error) {
	s.store.AppendChatMessage(sans.ChatMessage{Role: "user", Content: userMessage})

	// A mutation request with tools off is guaranteed to be refused, so
	// answer locally instead of burning an API call.
	if !s.store.ToolsEnabled() && WantsMutation(userMessage) {
		reply := sans.ChatMessage{Role: "assistant", Content: enableToolsReply}
		s.store.AppendChatMessage(reply)
		return reply, nil
	}

	reply, err := s.respond(ctx)
	if err != nil {
		s.logger.Error("chat response failed: %v", err)
		return sans.ChatMessage{}, err
	}
	s.store.AppendChatMessage(reply)
	return reply, nil
}

func (s *Service) respond(ctx context.Context) (sans.ChatMessage, error) {
	if s.client != nil {
		system := systemPrompt + "\n\nCurrent state:\n" + s.buildContext()
		turn, err := s.client.Converse(ctx, system, s.store.ChatHistory(), s.tools)
		if err != nil {
			return sans.ChatMessage{}, err
		}
		text := turn.Text
		if len(turn.Invocations) > 0 {
			var used []string
			for _, inv := range turn.Invocations {
				used = append(used, fmt.Sprintf("[Used tool: %s]", inv.ToolName))
			}
			text = text + "\n\n" + strings.Join(used, "\n")
		}
		return sans.ChatMessage{
			Role:            "assistant",
			Content:         text,
			ToolInvocations: turn.Invocations,
		}, nil
	}

	if s.fallback != nil {
		history := s.store.ChatHistory()
		prompt := ""
		if len(history) > 0 {
			prompt = history[len(history)-1].Content
		}
		system := "You are a SANS (Small Angle Neutron Scattering) data analysis expert assistant.\n\n" +
			s.buildContext() +
			"\n\nHelp the user with their SANS data analysis questions. Be concise and helpful."
		text, err := s.fallback.Complete(ctx, system, prompt)
		if err != nil {
			return sans.ChatMessage{}, err
		}
		return sans.ChatMessage{Role: "assistant", Content: text}, nil
	}

	return sans.ChatMessage{}, fmt.Errorf("no chat client configured")
}

// buildContext summarizes the session for the model: data, model,
// parameters, last fit, and the tools toggle.
func (s *Service) buildContext() string {
	var parts []string

	f, err := s.store.Fitter()
	if err != nil {
		parts = append(parts, "Fitter not initialized")
	} else {
		if f.HasData() {
			ds := f.Data()
			lo, hi := ds.QRange()
			parts = append(parts, fmt.Sprintf("Data loaded: %d points, Q range [%.4f, %.4f]", ds.Len(), lo, hi))
		} else {
			parts = append(parts, "No data loaded")
		}

		if f.HasModel() {
			parts = append(parts, fmt.Sprintf("Current model: %s", f.ModelName()))
			var lines []string
			for _, name := range f.ParamNames() {
				p, _ := f.Param(name)
				lines = append(lines, fmt.Sprintf("  %s: %v (vary: %v)", name, p.Value, p.Vary))
			}
			parts = append(parts, "Parameters:\n"+strings.Join(lines, "\n"))
		} else {
			parts = append(parts, "No model selected")
		}

		if result := f.Result(); result != nil {
			parts = append(parts, fmt.Sprintf("Last fit chi-square: %.4f", result.ChiSquare))
		}
	}

	parts = append(parts, fmt.Sprintf("AI tools enabled: %v", s.store.ToolsEnabled()))
	return strings.Join(parts, "\n")
}
