package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpipe/dpipe/internal/logger"
)

type compileOpts struct {
	// Root options
	PipelineFile string `mapstructure:"pipeline"`
	ParamsFile   string `mapstructure:"params"`

	// Compile specific options
	OutputFile string `mapstructure:"output,omitempty"`
}

func compileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Resolve a templated pipeline into its concrete form",
		Long: `dpipe compile expands every placeholder and repetition block of the
pipeline specification against the parameters document, and renders the
resulting flat node set back to the declarative format. Compiling an already
resolved pipeline is the identity transform.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			opts := compileOpts{}
			hydrateOptsFromViper(&opts)

			if err := doCompile(opts); err != nil {
				logger.Fatalf("Compilation failed: %v", err)
			}
		},
	}

	cmd.Flags().StringP("output", "o", "",
		"Write the resolved pipeline to this file instead of printing it.")

	return cmd
}

func doCompile(opts compileOpts) error {
	spec, err := compilePipeline(opts.PipelineFile, opts.ParamsFile)
	if err != nil {
		return err
	}

	if opts.OutputFile != "" {
		if err := spec.Save(opts.OutputFile); err != nil {
			return err
		}
		logger.Infof("Resolved pipeline saved to %s", opts.OutputFile)

		return nil
	}

	rendered, err := spec.Render()
	if err != nil {
		return err
	}
	fmt.Print(string(rendered)) //nolint:forbidigo

	return nil
}
