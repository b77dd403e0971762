package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/graphviz"
)

type graphOpts struct {
	// Root options
	PipelineFile string `mapstructure:"pipeline"`
	ParamsFile   string `mapstructure:"params"`

	// Graph specific options
	OutputDir string `mapstructure:"output_dir,omitempty"`
}

func graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Create a visual representation of the pipeline dependency graph",
		Long: `dpipe graph compiles the pipeline and renders its dependency graph
using graphviz. Both the raw dot file and a png image are written to the
output directory.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			opts := graphOpts{}
			hydrateOptsFromViper(&opts)

			if err := doGraph(opts); err != nil {
				logger.Fatalf("Graph generation failed: %v", err)
			}
		},
	}

	cmd.Flags().String("output-dir", ".",
		"Directory where the dot and png files are written.")

	return cmd
}

func doGraph(opts graphOpts) error {
	spec, err := compilePipeline(opts.PipelineFile, opts.ParamsFile)
	if err != nil {
		return err
	}

	graph, err := dag.Build(spec)
	if err != nil {
		return err
	}

	return graphviz.GenerateGraph(context.Background(), graph, opts.OutputDir)
}
