package ui

import (
	"net/http"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"sansfit/domain/sans"
	"sansfit/internal/chat"
	"sansfit/internal/errors"
)

// renderMarkdown converts assistant markdown to HTML for the chat pane.
func renderMarkdown(src string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return strings.TrimSpace(string(markdown.ToHTML([]byte(src), p, renderer)))
}

func chatMessagePayload(msg sans.ChatMessage) map[string]any {
	payload := map[string]any{
		"role":    msg.Role,
		"content": msg.Content,
	}
	if msg.Role == "assistant" {
		payload["html"] = renderMarkdown(msg.Content)
		payload["requests_enable_tools"] = chat.ResponseRequestsEnableTools(msg.Content)
	}
	if len(msg.ToolInvocations) > 0 {
		payload["tool_invocations"] = msg.ToolInvocations
	}
	return payload
}

// handleChatSend routes one user message through the assistant and
// returns the reply plus whether tools forced a re-render.
func (a *App) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		a.writeError(w, errors.InvalidInput("message must not be empty"))
		return
	}

	store := a.store(r)
	svc := a.c.ChatServiceFor(store)
	reply, err := svc.Send(r.Context(), req.Message)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if a.c.ChatRepo != nil {
		sessionID := a.sessionID(r)
		if err := a.c.ChatRepo.SaveMessage(r.Context(), sessionID, sans.ChatMessage{Role: "user", Content: req.Message}); err != nil {
			a.c.Logger.Warn("failed to persist user message: %v", err)
		}
		if err := a.c.ChatRepo.SaveMessage(r.Context(), sessionID, reply); err != nil {
			a.c.Logger.Warn("failed to persist assistant message: %v", err)
		}
	}

	payload := chatMessagePayload(reply)
	payload["needs_rerun"] = store.ConsumeNeedsRerun()
	a.writeJSON(w, http.StatusOK, payload)
}

func (a *App) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	history := store.ChatHistory()

	// A fresh in-memory session (new process, same cookie) restores its
	// transcript from the repository when one is configured.
	if len(history) == 0 && a.c.ChatRepo != nil {
		persisted, err := a.c.ChatRepo.History(r.Context(), a.sessionID(r))
		if err != nil {
			a.c.Logger.Warn("failed to load persisted history: %v", err)
		} else {
			for _, msg := range persisted {
				store.AppendChatMessage(msg)
			}
			history = store.ChatHistory()
		}
	}

	messages := make([]map[string]any, 0, len(history))
	for _, msg := range history {
		messages = append(messages, chatMessagePayload(msg))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (a *App) handleChatClear(w http.ResponseWriter, r *http.Request) {
	a.store(r).ClearChatHistory()
	if a.c.ChatRepo != nil {
		if err := a.c.ChatRepo.Clear(r.Context(), a.sessionID(r)); err != nil {
			a.c.Logger.Warn("failed to clear persisted history: %v", err)
		}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// handleSettings updates the session's assistant settings: the tools
// toggle and an optional per-session API key.
func (a *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToolsEnabled *bool   `json:"tools_enabled"`
		APIKey       *string `json:"api_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	if req.ToolsEnabled != nil {
		store.SetToolsEnabled(*req.ToolsEnabled)
	}
	if req.APIKey != nil {
		store.SetAPIKey(strings.TrimSpace(*req.APIKey))
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"tools_enabled":   store.ToolsEnabled(),
		"api_key_set":     store.APIKey() != "",
		"has_tool_client": a.c.HasToolClient() || store.APIKey() != "",
	})
}

// handleState is the render loop's snapshot: lifecycle flags, widget
// mirrors, and the consumed needs_rerun signal.
func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	a.writeJSON(w, http.StatusOK, map[string]any{
		"data_loaded":    store.DataLoaded(),
		"model_selected": store.ModelSelected(),
		"current_model":  store.CurrentModelName(),
		"fit_status":     string(store.FitStatus()),
		"fit_completed":  store.FitCompleted(),
		"fit_error":      store.FitError(),
		"tools_enabled":  store.ToolsEnabled(),
		"pd_enabled":     store.PDEnabled(),
		"needs_rerun":    store.ConsumeNeedsRerun(),
		"widgets":        widgetSnapshot(store),
	})
}
