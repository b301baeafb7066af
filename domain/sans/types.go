// Package sans holds the core value types shared across the fitter,
// session store, tool registry, and UI layers.
package sans

import (
	"fmt"
	"math"
)

// ParamInfo describes one model parameter as reported by the fitter.
type ParamInfo struct {
	Value       float64 `json:"value"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Vary        bool    `json:"vary"`
	Description string  `json:"description,omitempty"`
}

// ParamUpdate is a full parameter row submitted from the UI or a tool call.
type ParamUpdate struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Vary  bool    `json:"vary"`
}

// DistributionType enumerates the supported polydispersity distributions.
type DistributionType string

const (
	DistGaussian  DistributionType = "gaussian"
	DistLogNormal DistributionType = "lognormal"
	DistSchulz    DistributionType = "schulz"
	DistRectangle DistributionType = "rectangle"
	DistBoltzmann DistributionType = "boltzmann"
)

// DistributionTypes lists every valid distribution, in UI order.
var DistributionTypes = []DistributionType{
	DistGaussian, DistLogNormal, DistSchulz, DistRectangle, DistBoltzmann,
}

// ParseDistribution validates a distribution name.
func ParseDistribution(name string) (DistributionType, error) {
	for _, d := range DistributionTypes {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown polydispersity distribution %q", name)
}

// PDConfig is the polydispersity configuration for one size parameter.
// Width is relative (conceptually [0,1]), N is the quadrature point count.
type PDConfig struct {
	Width        float64          `json:"pd_width"`
	N            int              `json:"pd_n"`
	Distribution DistributionType `json:"pd_type"`
	Vary         bool             `json:"vary"`
}

// PDWidthQuadratureMin and Max bound the quadrature point count.
const (
	PDQuadratureMin = 5
	PDQuadratureMax = 100
)

// Validate checks the PD configuration against its documented ranges.
// A width above 0.5 is accepted; callers warn about it separately.
func (c PDConfig) Validate() error {
	if c.Width < 0 || c.Width > 1 {
		return fmt.Errorf("pd width %.3f outside [0, 1]", c.Width)
	}
	if c.N < PDQuadratureMin || c.N > PDQuadratureMax {
		return fmt.Errorf("pd quadrature count %d outside [%d, %d]", c.N, PDQuadratureMin, PDQuadratureMax)
	}
	if _, err := ParseDistribution(string(c.Distribution)); err != nil {
		return err
	}
	return nil
}

// FitParam is one optimized parameter in a fit result. A NaN Stderr means
// the optimizer could not estimate an uncertainty; it renders as "N/A".
type FitParam struct {
	Value  float64 `json:"value"`
	Stderr float64 `json:"stderr"`
}

// StderrText formats the uncertainty for display.
func (p FitParam) StderrText() string {
	if math.IsNaN(p.Stderr) {
		return "N/A"
	}
	return fmt.Sprintf("%.4g", p.Stderr)
}

// FitResult is produced by one fit run. Immutable once produced; the next
// fit (or a model change) supersedes it.
type FitResult struct {
	ChiSquare  float64             `json:"chisq"`
	Parameters map[string]FitParam `json:"parameters"`
}

// FitStatus tracks the fit lifecycle in the session store.
type FitStatus string

const (
	FitIdle      FitStatus = "idle"
	FitQueued    FitStatus = "queued"
	FitRunning   FitStatus = "running"
	FitCompleted FitStatus = "completed"
	FitFailed    FitStatus = "failed"
)

var validFitStatuses = map[FitStatus]bool{
	FitIdle: true, FitQueued: true, FitRunning: true, FitCompleted: true, FitFailed: true,
}

// ParseFitStatus validates a fit status string.
func ParseFitStatus(s string) (FitStatus, error) {
	st := FitStatus(s)
	if !validFitStatuses[st] {
		return "", fmt.Errorf("invalid fit status %q: must be one of idle, queued, running, completed, failed", s)
	}
	return st, nil
}

// ToolInvocation records one tool call made during an assistant turn.
type ToolInvocation struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	Result   string         `json:"result"`
}

// ChatMessage is one entry of the append-only conversation history.
type ChatMessage struct {
	Role            string           `json:"role"` // "user" or "assistant"
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
}

// Dataset holds one loaded Q/I/dI scattering curve.
type Dataset struct {
	Q  []float64 `json:"q"`
	I  []float64 `json:"i"`
	DI []float64 `json:"di"`
}

// Len returns the point count.
func (d *Dataset) Len() int { return len(d.Q) }

// QRange returns the minimum and maximum scattering vector.
func (d *Dataset) QRange() (lo, hi float64) {
	if len(d.Q) == 0 {
		return 0, 0
	}
	lo, hi = d.Q[0], d.Q[0]
	for _, q := range d.Q[1:] {
		if q < lo {
			lo = q
		}
		if q > hi {
			hi = q
		}
	}
	return lo, hi
}

// ToolDefinition is the JSON-schema-shaped contract one registry tool
// publishes to the LLM tool-use API.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}
