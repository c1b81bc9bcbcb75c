package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"popconn/adapters/stats/metrics"
	"popconn/app"
	"popconn/domain/connectome"
	"popconn/internal/config"
	"popconn/internal/container"
	"popconn/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "popconn-cli",
		Short:        "Population connectome construction and group comparison",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSimulateCmd(),
		newExampleCmd(),
		newMetricsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// compareFlags are shared by every command that runs a permutation test
type compareFlags struct {
	seed         uint64
	permutations int
	metric       string
	method       string
	workers      int
	distribution bool
}

func (f *compareFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.seed, "seed", 42, "Random seed for the permutation streams")
	cmd.Flags().IntVar(&f.permutations, "permutations", 1000, "Number of label permutations")
	cmd.Flags().StringVar(&f.metric, "metric", metrics.Default, "Metric to compare (see the metrics command)")
	cmd.Flags().StringVar(&f.method, "method", string(connectome.MethodPearson), "Connectome method: pearson|spearman|kendall|covariance")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent trials (0 uses the configured value)")
	cmd.Flags().BoolVar(&f.distribution, "distribution", false, "Include the null distribution in the output")
}

func (f *compareFlags) request(table connectome.Table, layout connectome.Layout) app.CompareRequest {
	seed := f.seed
	return app.CompareRequest{
		Table:              table,
		Layout:             layout,
		Method:             connectome.Method(f.method),
		Metric:             f.metric,
		NumPermutations:    f.permutations,
		Seed:               &seed,
		ReturnDistribution: f.distribution,
	}
}

func newContainer(workers int) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if workers > 0 {
		cfg.Permutation.Workers = workers
	}
	return container.New(cfg)
}

func newSimulateCmd() *cobra.Command {
	var flags compareFlags
	gen := testkit.DefaultCohortConfig()
	var wide bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Compare two groups of a synthetic cohort",
		Long: `Generate a seeded two-group cohort whose groups differ in how strongly the
regions share a latent factor, then run a permutation test on it.

Example: popconn-cli simulate --subjects 30 --regions 6 --metric frobenius_norm_difference --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen.Seed = flags.seed
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), gen, wide, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&gen.SubjectsPerGroup, "subjects", gen.SubjectsPerGroup, "Subjects per group")
	cmd.Flags().IntVar(&gen.RegionCount, "regions", gen.RegionCount, "Number of regions")
	cmd.Flags().Float64Var(&gen.Coupling[0], "coupling-a", gen.Coupling[0], "Latent coupling of the first group")
	cmd.Flags().Float64Var(&gen.Coupling[1], "coupling-b", gen.Coupling[1], "Latent coupling of the second group")
	cmd.Flags().Float64Var(&gen.Noise, "noise", gen.Noise, "Per-region noise standard deviation")
	cmd.Flags().BoolVar(&wide, "wide", false, "Route the cohort through the wide-format reshaper")

	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, gen testkit.CohortGeneratorConfig, wide bool, flags compareFlags) error {
	c, err := newContainer(flags.workers)
	if err != nil {
		return err
	}

	cohort := testkit.NewCohortGenerator(gen)
	table := cohort.GenerateLong()
	layout := connectome.Layout{Shape: connectome.ShapeLong, GroupColumn: "group"}
	if wide {
		table = cohort.GenerateWide()
		layout = connectome.Layout{Shape: connectome.ShapeWide, SubjectColumn: "subject_id", GroupColumn: "group"}
	}

	result, err := c.ConnectomeService.CompareGroups(ctx, flags.request(table, layout))
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	return writeJSON(out, result)
}

func newExampleCmd() *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Build the connectome of the six-subject worked example and compare its groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExample(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runExample(ctx context.Context, out io.Writer, flags compareFlags) error {
	c, err := newContainer(flags.workers)
	if err != nil {
		return err
	}

	table := testkit.WorkedExampleLong()
	layout := connectome.Layout{Shape: connectome.ShapeLong, GroupColumn: "group"}

	matrix, err := c.ConnectomeService.BuildConnectome(ctx, app.BuildRequest{
		Table:  table,
		Layout: layout,
		Method: connectome.Method(flags.method),
	})
	if err != nil {
		return fmt.Errorf("example connectome: %w", err)
	}
	result, err := c.ConnectomeService.CompareGroups(ctx, flags.request(table, layout))
	if err != nil {
		return fmt.Errorf("example comparison: %w", err)
	}

	return writeJSON(out, map[string]any{
		"connectome": matrix,
		"comparison": result,
	})
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the available comparison metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSHAPE\tDESCRIPTION")
			for _, d := range metrics.Describe() {
				name := d.Name
				if name == metrics.Default {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, d.Shape, d.Description)
			}
			return w.Flush()
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
