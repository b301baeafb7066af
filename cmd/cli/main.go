package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"sansfit/adapters/dataio"
	"sansfit/adapters/export"
	"sansfit/adapters/fitter"
	"sansfit/internal/analysis"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sansfit-cli",
		Short: "Headless SANS model fitting",
	}

	rootCmd.AddCommand(
		newModelsCmd(),
		newProfileCmd(),
		newFitCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available scattering models and structure factors",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Models:")
			for _, name := range fitter.AllModels() {
				fmt.Printf("  %-20s %s\n", name, fitter.LookupModel(name).Description)
			}
			fmt.Println("Structure factors:")
			for _, name := range fitter.AllStructureFactors() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Printf("Engines: %s\n", strings.Join(fitter.Engines(), ", "))
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [data.csv]",
		Short: "Analyze a dataset and suggest candidate models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataio.ReadDatasetFile(args[0])
			if err != nil {
				return err
			}
			profile, err := analysis.Analyze(ds)
			if err != nil {
				return err
			}
			fmt.Println(profile.Describe())
			fmt.Printf("Suggested models: %s\n", strings.Join(analysis.SuggestModels(ds), ", "))
			return nil
		},
	}
}

func newFitCmd() *cobra.Command {
	var model string
	var engine string
	var structureFactor string
	var sets []string
	var vary []string
	var fixAll bool
	var paramsOut string
	var xlsxOut string

	cmd := &cobra.Command{
		Use:   "fit [data.csv]",
		Short: "Fit a model to a reduced SANS dataset",
		Long: `Fit a scattering model to a Q,I,dI CSV file and print the optimized
parameters.

Example: sansfit-cli fit data.csv --model sphere --set radius=80 --fix-all --vary radius --vary background --xlsx results.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataio.ReadDatasetFile(args[0])
			if err != nil {
				return err
			}

			f := fitter.New()
			if err := f.SetData(ds); err != nil {
				return err
			}
			if err := f.SetModel(model); err != nil {
				return err
			}
			if structureFactor != "" {
				if err := f.SetStructureFactor(structureFactor); err != nil {
					return err
				}
			}

			if fixAll {
				off := false
				for _, name := range f.ParamNames() {
					if err := f.SetParam(name, fitter.ParamPatch{Vary: &off}); err != nil {
						return err
					}
				}
			}
			for _, assignment := range sets {
				name, value, err := parseAssignment(assignment)
				if err != nil {
					return err
				}
				if err := f.SetParam(name, fitter.ParamPatch{Value: &value}); err != nil {
					return err
				}
			}
			on := true
			for _, name := range vary {
				if err := f.SetParam(name, fitter.ParamPatch{Vary: &on}); err != nil {
					return err
				}
			}

			result, err := f.Fit(engine)
			if err != nil {
				return err
			}

			fmt.Printf("Reduced chi-square: %.4f\n", result.ChiSquare)
			names := make([]string, 0, len(result.Parameters))
			for name := range result.Parameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := result.Parameters[name]
				fmt.Printf("  %s = %.4g ± %s\n", name, p.Value, p.StderrText())
			}

			if paramsOut != "" {
				if err := writeParams(paramsOut, f); err != nil {
					return err
				}
				fmt.Printf("Parameters written to %s\n", paramsOut)
			}
			if xlsxOut != "" {
				if err := writeWorkbook(xlsxOut, f); err != nil {
					return err
				}
				fmt.Printf("Results written to %s\n", xlsxOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "sphere", "scattering model name")
	cmd.Flags().StringVar(&engine, "engine", "", "fit engine (amoeba or gradient)")
	cmd.Flags().StringVar(&structureFactor, "structure-factor", "", "interparticle structure factor")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "parameter assignment name=value (repeatable)")
	cmd.Flags().StringArrayVar(&vary, "vary", nil, "parameter to optimize (repeatable)")
	cmd.Flags().BoolVar(&fixAll, "fix-all", false, "fix every parameter before applying --vary")
	cmd.Flags().StringVar(&paramsOut, "params-out", "", "write the final parameter table as CSV")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "write results as an Excel workbook")
	return cmd
}

func parseAssignment(s string) (string, float64, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, fmt.Errorf("invalid --set %q: expected name=value", s)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --set %q: %v", s, err)
	}
	return name, value, nil
}

func writeParams(path string, f *fitter.Fitter) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return dataio.WriteParamsCSV(out, f.ParamNames(), f.Params())
}

func writeWorkbook(path string, f *fitter.Fitter) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return export.WriteXLSX(out, export.Workbook{
		ModelName:  f.ModelName(),
		ParamOrder: f.ParamNames(),
		Params:     f.Params(),
		FitResult:  f.Result(),
	})
}
