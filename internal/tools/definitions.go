package tools

import "sansfit/domain/sans"

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(kind, description string) map[string]any {
	return map[string]any{"type": kind, "description": description}
}

// Definitions returns the JSON-schema contract for every registry tool,
// in the shape the Messages API tool-use protocol expects.
func (r *Registry) Definitions() []sans.ToolDefinition {
	return []sans.ToolDefinition{
		{
			Name:        "list-sans-models",
			Description: "List all available SANS scattering models. Returns model names usable with set-model.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "get-model-parameters",
			Description: "Get parameter details for a specific SANS model: names, default values, bounds, and whether each varies during fitting.",
			InputSchema: objectSchema(map[string]any{
				"model_name": prop("string", "Name of the model (e.g. 'sphere', 'cylinder')"),
			}, "model_name"),
		},
		{
			Name:        "get-current-state",
			Description: "Get the current fitter state: loaded data summary, active model, and parameter values.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "get-fit-results",
			Description: "Get the most recent fit results: optimized parameter values, uncertainties, and reduced chi-square.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "set-model",
			Description: "Load a SANS model for fitting, replacing the current model and its parameters.",
			InputSchema: objectSchema(map[string]any{
				"model_name": prop("string", "Name of the model to load (e.g. 'sphere', 'cylinder', 'ellipsoid')"),
			}, "model_name"),
		},
		{
			Name:        "set-parameter",
			Description: "Set one parameter's value, bounds, and/or whether it varies during fitting. Omitted fields are left unchanged.",
			InputSchema: objectSchema(map[string]any{
				"name":      prop("string", "Parameter name (e.g. 'radius', 'sld')"),
				"value":     prop("number", "New value for the parameter"),
				"min_bound": prop("number", "Minimum bound for fitting"),
				"max_bound": prop("number", "Maximum bound for fitting"),
				"vary":      prop("boolean", "Whether the parameter varies during fitting"),
			}, "name"),
		},
		{
			Name:        "set-multiple-parameters",
			Description: "Set several parameters in one call. Each entry maps a parameter name to a settings object with optional keys value, min, max, vary. Unknown names are reported per item without aborting the batch.",
			InputSchema: objectSchema(map[string]any{
				"parameters": map[string]any{
					"type":        "object",
					"description": "Map of parameter name to settings, e.g. {\"radius\": {\"value\": 50, \"vary\": true}}",
					"additionalProperties": objectSchema(map[string]any{
						"value": prop("number", "New value"),
						"min":   prop("number", "Minimum bound"),
						"max":   prop("number", "Maximum bound"),
						"vary":  prop("boolean", "Vary during fitting"),
					}),
				},
			}, "parameters"),
		},
		{
			Name:        "enable-polydispersity",
			Description: "Enable polydispersity for a size parameter with a chosen distribution and relative width.",
			InputSchema: objectSchema(map[string]any{
				"parameter_name": prop("string", "Parameter to make polydisperse (e.g. 'radius')"),
				"pd_type":        prop("string", "Distribution type: gaussian, lognormal, schulz, rectangle, or boltzmann"),
				"pd_value":       prop("number", "Relative width of the distribution, typically 0.01-0.5"),
			}, "parameter_name"),
		},
		{
			Name:        "set-structure-factor",
			Description: "Add a structure factor to account for interparticle interactions (hardsphere, stickyhardsphere, squarewell).",
			InputSchema: objectSchema(map[string]any{
				"sf_name": prop("string", "Structure factor name"),
			}, "sf_name"),
		},
		{
			Name:        "remove-structure-factor",
			Description: "Remove any structure factor from the current model.",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "run-fit",
			Description: "Run the curve fitting optimization with the current model and parameter settings. Returns fit quality metrics and optimized values.",
			InputSchema: objectSchema(map[string]any{
				"engine": prop("string", "Fit engine: amoeba (simplex) or gradient (BFGS). Defaults to amoeba."),
			}),
		},
	}
}
