package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/dag"
)

type listOpts struct {
	// Root options
	PipelineFile string `mapstructure:"pipeline"`
	ParamsFile   string `mapstructure:"params"`
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the nodes of the compiled pipeline",
		Long: `dpipe list compiles the pipeline and prints every node with its
command and the nodes it depends on, in execution order.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			opts := listOpts{}
			hydrateOptsFromViper(&opts)

			if err := doList(opts); err != nil {
				logger.Fatalf("List failed: %v", err)
			}
		},
	}
}

func doList(opts listOpts) error {
	spec, err := compilePipeline(opts.PipelineFile, opts.ParamsFile)
	if err != nil {
		return err
	}

	graph, err := dag.Build(spec)
	if err != nil {
		return err
	}

	waves, err := graph.Waves()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Wave", "Node", "Command", "Depends On"})
	table.SetAutoWrapText(false)

	for index, wave := range waves {
		for _, name := range wave {
			node := graph.Node(name)
			table.Append([]string{
				strconv.Itoa(index),
				name,
				node.Command,
				strings.Join(graph.Dependencies(name), ", "),
			})
		}
	}

	table.Render()

	return nil
}
