package tools

import (
	"fmt"

	"sansfit/internal"
	"sansfit/internal/session"
)

// Registry exposes the fixed set of named operations the AI assistant
// may call. Read-only tools are always allowed; mutating tools require
// the user's tools-enabled toggle and answer with a fixed "disabled"
// message otherwise, touching nothing.
type Registry struct {
	store  *session.Store
	logger *internal.Logger
}

func NewRegistry(store *session.Store, logger *internal.Logger) *Registry {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Registry{store: store, logger: logger}
}

// Execute runs the named tool and returns its textual result. A tool
// failure of any kind, panics included, comes back as error text: the
// AI conversation must never hard-fail because one tool call blew up.
func (r *Registry) Execute(name string, input map[string]any) (out string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool %s panicked: %v", name, p)
			out = fmt.Sprintf("Tool '%s' failed: %v", name, p)
		}
	}()
	if input == nil {
		input = map[string]any{}
	}

	r.logger.Debug("executing tool %s", name)
	switch name {
	case "list-sans-models":
		return r.listModels()
	case "get-model-parameters":
		return r.getModelParameters(input)
	case "get-current-state":
		return r.getCurrentState()
	case "get-fit-results":
		return r.getFitResults()
	case "set-model":
		return r.setModel(input)
	case "set-parameter":
		return r.setParameter(input)
	case "set-multiple-parameters":
		return r.setMultipleParameters(input)
	case "enable-polydispersity":
		return r.enablePolydispersity(input)
	case "set-structure-factor":
		return r.setStructureFactor(input)
	case "remove-structure-factor":
		return r.removeStructureFactor()
	case "run-fit":
		return r.runFit(input)
	default:
		return fmt.Sprintf("Unknown tool: %s", name)
	}
}

// Input accessors. JSON numbers arrive as float64; tolerate ints too.

func stringArg(input map[string]any, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok
}

func floatArg(input map[string]any, key string) (float64, bool) {
	switch v := input[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func boolArg(input map[string]any, key string) (bool, bool) {
	v, ok := input[key].(bool)
	return v, ok
}

func mapArg(input map[string]any, key string) (map[string]any, bool) {
	v, ok := input[key].(map[string]any)
	return v, ok
}
