package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"sansfit/adapters/fitter"
	"sansfit/domain/sans"
	"sansfit/internal"
	"sansfit/ports"
)

// Profile captures the headline characteristics of a scattering curve
// used for model suggestion: the log-log power law slope and how hard
// the intensity decays across the measured Q window.
type Profile struct {
	QMin           float64
	QMax           float64
	Points         int
	Slope          float64
	IntensityDecay float64
}

// Analyze computes a data profile. The slope comes from a linear
// regression in log10-log10 space; the decay is the ratio of the mean
// intensity in the first decile of points to the last decile.
func Analyze(ds *sans.Dataset) (Profile, error) {
	if ds == nil || ds.Len() == 0 {
		return Profile{}, fmt.Errorf("no data to analyze")
	}

	logQ := make([]float64, ds.Len())
	logI := make([]float64, ds.Len())
	for i := range ds.Q {
		logQ[i] = math.Log10(ds.Q[i] + 1e-10)
		logI[i] = math.Log10(ds.I[i] + 1e-10)
	}
	_, slope := stat.LinearRegression(logQ, logI, nil, false)

	decile := ds.Len() / 10
	if decile < 1 {
		decile = 1
	}
	lowQ, err := stats.Mean(ds.I[:decile])
	if err != nil {
		return Profile{}, err
	}
	highQ, err := stats.Mean(ds.I[ds.Len()-decile:])
	if err != nil {
		return Profile{}, err
	}

	lo, hi := ds.QRange()
	return Profile{
		QMin:           lo,
		QMax:           hi,
		Points:         ds.Len(),
		Slope:          slope,
		IntensityDecay: lowQ / (highQ + 1e-10),
	}, nil
}

// Describe renders the profile as the text block handed to the AI when
// asking for model suggestions.
func (p Profile) Describe() string {
	return fmt.Sprintf(`Data Analysis:
- Q range: %.4f to %.4f Å⁻¹
- Power law slope: %.2f
- Intensity decay: %.1fx from low to high Q
- Data points: %d
`, p.QMin, p.QMax, p.Slope, p.IntensityDecay, p.Points)
}

// SuggestModels picks candidate models from the data's power law slope.
// Steep decay points at compact particles, moderate decay at elongated
// shapes, gentle decay at open or aggregated structures.
func SuggestModels(ds *sans.Dataset) []string {
	p, err := Analyze(ds)
	if err != nil {
		return []string{"sphere", "cylinder", "ellipsoid"}
	}

	var suggestions []string
	switch {
	case p.Slope < -3.5:
		suggestions = []string{"sphere", "core_shell_sphere", "ellipsoid"}
	case p.Slope < -2:
		suggestions = []string{"cylinder", "ellipsoid", "core_shell_sphere"}
	case p.Slope < -1:
		suggestions = []string{"power_law", "fractal", "cylinder"}
	default:
		suggestions = []string{"sphere", "cylinder", "ellipsoid"}
	}
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

// SuggestModelsAI asks the chat client for 3-5 candidate models given
// the data profile, validating each suggestion against the registry.
// Falls back to the slope heuristic when the client fails or answers
// with nothing usable.
func SuggestModelsAI(ctx context.Context, client ports.ChatClient, ds *sans.Dataset, logger *internal.Logger) []string {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if client == nil {
		return SuggestModels(ds)
	}
	p, err := Analyze(ds)
	if err != nil {
		return SuggestModels(ds)
	}

	system := "You are a SANS (Small-Angle Neutron Scattering) expert. " +
		"Based on the scattering data characteristics provided, suggest appropriate scattering models. " +
		"Return ONLY a comma-separated list of model names, nothing else."
	prompt := fmt.Sprintf(`Based on this SANS scattering data, suggest 3-5 appropriate models.
Return ONLY a comma-separated list of model names, nothing else.

%s
Available models: %s`, p.Describe(), strings.Join(fitter.AllModels(), ", "))

	response, err := client.Complete(ctx, system, prompt)
	if err != nil {
		logger.Warn("AI model suggestion failed: %v", err)
		return SuggestModels(ds)
	}

	available := map[string]bool{}
	for _, name := range fitter.AllModels() {
		available[name] = true
	}
	var valid []string
	for _, s := range strings.Split(response, ",") {
		name := strings.TrimSpace(s)
		if available[name] {
			valid = append(valid, name)
		}
	}
	if len(valid) == 0 {
		return SuggestModels(ds)
	}
	return valid
}

// Residuals returns the weighted residuals (I_exp - I_fit) / dI, with
// non-positive uncertainties guarded.
func Residuals(experimental, fitted, uncertainties []float64) []float64 {
	out := make([]float64, len(experimental))
	for i := range experimental {
		di := uncertainties[i]
		if di <= 0 {
			di = 1e-10
		}
		out[i] = (experimental[i] - fitted[i]) / di
	}
	return out
}
