package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/link"
)

type checkOpts struct {
	// Root options
	PipelineFile string `mapstructure:"pipeline"`
	ParamsFile   string `mapstructure:"params"`

	// Check specific options
	LinksDir string `mapstructure:"links_dir,omitempty"`
}

func checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the pipeline without executing it",
		Long: `dpipe check compiles the pipeline and verifies that the inferred
dependency graph is acyclic. When --links-dir is set, the folder reference
tree under that directory is checked for cycles as well.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			opts := checkOpts{}
			hydrateOptsFromViper(&opts)

			if err := doCheck(opts); err != nil {
				logger.Fatalf("Check failed: %v", err)
			}
		},
	}

	cmd.Flags().String("links-dir", "",
		"Root directory of a dataset tree whose links.yml references are checked for cycles.")

	return cmd
}

func doCheck(opts checkOpts) error {
	spec, err := compilePipeline(opts.PipelineFile, opts.ParamsFile)
	if err != nil {
		return err
	}

	graph, err := dag.Build(spec)
	if err != nil {
		return err
	}
	logger.Infof("Pipeline is valid: %d nodes, no cycle", len(graph.Nodes()))

	if opts.LinksDir != "" {
		if err := link.Check(opts.LinksDir); err != nil {
			return err
		}
		logger.Infof("Folder links under %s are acyclic", opts.LinksDir)
	}

	return nil
}
