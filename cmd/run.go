package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/event"
	"github.com/dpipe/dpipe/pkg/exec"
	"github.com/dpipe/dpipe/pkg/executor"
	"github.com/dpipe/dpipe/pkg/report"
)

const (
	backendSequential = "sequential"
	backendConcurrent = "concurrent"
)

type runOpts struct {
	// Root options
	PipelineFile string `mapstructure:"pipeline"`
	ParamsFile   string `mapstructure:"params"`

	// Run specific options
	Backend     string `mapstructure:"backend,omitempty"`
	Concurrency int    `mapstructure:"concurrency,omitempty"`
	Token       string `mapstructure:"token,omitempty"`
	ReportsDir  string `mapstructure:"reports_dir,omitempty"`
	Watch       bool   `mapstructure:"watch,omitempty"`
}

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline",
		Long: `dpipe run compiles the pipeline, validates its dependency graph and
executes every node in dependency order. Nodes with no dependency between
them run within the same wave; a failed node skips its dependents while
independent branches run to completion.

The exit code is non-zero iff any node failed.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			opts := runOpts{}
			hydrateOptsFromViper(&opts)

			if err := doRun(opts); err != nil {
				logger.Fatalf("Run failed: %v", err)
			}
		},
	}

	cmd.Flags().StringP("backend", "b", defaultBackend,
		"Execution backend (sequential|concurrent).")
	cmd.Flags().Int("concurrency", defaultConcurrency,
		"Maximum number of nodes running at the same time within a wave (concurrent backend only).")
	cmd.Flags().StringP("token", "t", "",
		"Run token tagging every lifecycle event of this run. Generated when empty.")
	cmd.Flags().String("reports-dir", defaultReportsDir,
		"Directory where per-node output logs are written.")
	cmd.Flags().Bool("watch", false,
		"Live printing of node lifecycle events.")

	return cmd
}

func doRun(opts runOpts) error {
	spec, err := compilePipeline(opts.PipelineFile, opts.ParamsFile)
	if err != nil {
		return err
	}

	graph, err := dag.Build(spec)
	if err != nil {
		return err
	}

	token := opts.Token
	if token == "" {
		token = event.NewToken()
	}
	logger.Infof("Run token: %s", token)

	bus := event.NewBus()
	publisher := bus.Publisher(token)

	watchDone := func() {}
	if opts.Watch {
		events, cancel := bus.Subscribe(token)
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			printEvents(events)
		}()
		watchDone = func() {
			cancel()
			<-finished
		}
	}

	backend, err := buildBackend(opts, publisher)
	if err != nil {
		return err
	}

	// A run can be cancelled from the outside; in-flight subprocesses are
	// signalled and every node that did not complete is reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := executor.NewRunner(backend, publisher)
	results, err := runner.Run(ctx, graph)
	watchDone()
	if err != nil {
		return err
	}

	report.PrintResults(results)

	return report.CheckError(results)
}

func buildBackend(opts runOpts, publisher event.Publisher) (executor.Backend, error) {
	shell := exec.NewShellExecutor(workingDir, os.Environ())
	logsDir := path.Join(opts.ReportsDir, "logs")

	switch opts.Backend {
	case backendSequential:
		return executor.NewSequential(shell, executor.NopValidator{}, publisher, logsDir), nil
	case backendConcurrent:
		return executor.NewConcurrent(shell, executor.NopValidator{}, publisher, logsDir, opts.Concurrency), nil
	default:
		return nil, fmt.Errorf("unknown execution backend %q", opts.Backend)
	}
}

func printEvents(events <-chan event.Event) {
	for evt := range events {
		line := fmt.Sprintf("%s %s -> %s",
			pterm.Gray(evt.Timestamp.Format("15:04:05")), evt.Node, evt.Transition)
		if evt.Message != "" {
			line += " (" + evt.Message + ")"
		}

		switch evt.Transition {
		case event.TransitionSucceeded:
			pterm.Println(pterm.Green(line))
		case event.TransitionFailed:
			pterm.Println(pterm.Red(line))
		case event.TransitionSkipped:
			pterm.Println(pterm.Yellow(line))
		default:
			pterm.Println(line)
		}
	}
}
