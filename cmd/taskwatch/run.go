package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aristath/taskwatch/internal/config"
	"github.com/aristath/taskwatch/internal/events"
	"github.com/aristath/taskwatch/internal/inputs"
	"github.com/aristath/taskwatch/internal/monitor"
	"github.com/aristath/taskwatch/internal/rerun"
	"github.com/aristath/taskwatch/internal/runner"
	"github.com/aristath/taskwatch/internal/substrate"
	"github.com/aristath/taskwatch/internal/tui"
)

// exitFailures is the exit code when at least one input did not complete.
const exitFailures = 2

func newRunCmd(v *viper.Viper, p *paths) *cobra.Command {
	var inputsPath string

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command once per input",
		Long: `Run a command once per input, appending the input as the last argument.

Inputs are read from --inputs: a YAML list (.yaml, .yml), a JSON array (.json),
or one input per line. Use - to read lines from stdin. When no command is given,
the "command" list from the config file is used.`,
		Example: `  find . -name '*.wav' | taskwatch run --timeout 1m -- ./encode.sh
  taskwatch run -i hosts.yaml --concurrency 8 --observer debug -- ssh -o BatchMode=yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, p)
			if err != nil {
				return err
			}

			command := args
			if len(command) == 0 {
				command = cfg.Command
			}
			if len(command) == 0 {
				return errors.New("no command given and none configured")
			}

			list, err := inputs.Load(inputsPath)
			if err != nil {
				return err
			}

			b := &batch{
				cfg:     cfg,
				paths:   p,
				work:    substrate.CommandWork(command[0], command[1:]...),
				inputs:  list,
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
				metrics: prometheus.NewRegistry(),

				inputsFromStdin: inputsPath == "-",
			}
			report, err := b.execute(cmd.Context())
			if report.Outcomes != nil {
				printSummary(b.stdout, report, list)
			}
			if err != nil {
				return err
			}
			if n := len(list) - report.Count(runner.StatusCompleted); n > 0 {
				return &exitError{code: exitFailures, msg: fmt.Sprintf("%d of %d inputs did not complete", n, len(list))}
			}
			return nil
		},
	}

	fs := cmd.Flags()
	// Everything after the command name belongs to the command.
	fs.SetInterspersed(false)
	fs.StringVarP(&inputsPath, "inputs", "i", "-", "inputs file (.yaml, .json, or one per line; - for stdin)")
	runFlags(fs)
	if err := bindFlags(v, fs); err != nil {
		panic(err)
	}

	return cmd
}

// batch is one invocation of the run command.
type batch struct {
	cfg     *config.Config
	paths   *paths
	work    substrate.WorkFunc
	inputs  []string
	stdout  io.Writer
	stderr  io.Writer
	metrics *prometheus.Registry

	inputsFromStdin bool

	// shared holds observers that live across re-run rounds.
	shared monitor.Multi
}

// execute runs the batch with the configured re-run rounds and observers.
func (b *batch) execute(ctx context.Context) (rerun.Report, error) {
	if b.cfg.MetricsAddr != "" {
		m, err := monitor.NewMetrics(b.metrics)
		if err != nil {
			return rerun.Report{}, fmt.Errorf("registering metrics: %w", err)
		}
		b.shared = append(b.shared, m)

		srv := startMetricsServer(b.cfg.MetricsAddr, b.metrics)
		defer shutdownServer(srv)
	}

	if b.cfg.OTLPEndpoint != "" {
		tracer, shutdown, err := setupTracing(ctx, b.cfg.OTLPEndpoint)
		if err != nil {
			return rerun.Report{}, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("WARNING: flushing traces: %v", err)
			}
		}()
		b.shared = append(b.shared, monitor.NewTracing(ctx, tracer))
	}

	if b.cfg.Observer == config.ObserverTUI {
		return b.executeTUI(ctx)
	}

	return b.rounds(ctx, func() monitor.Observer {
		switch b.cfg.Observer {
		case config.ObserverDebug:
			return monitor.NewDebug(b.stderr)
		case config.ObserverSilent:
			return monitor.Silent{}
		default:
			return monitor.NewInteractive(b.stderr, b.cfg.ClearScreen)
		}
	})
}

// rounds runs the inputs and re-runs failures. newObserver is called once per
// round so that per-round displays start from a clean slate.
func (b *batch) rounds(ctx context.Context, newObserver func() monitor.Observer) (rerun.Report, error) {
	rcfg := rerun.DefaultConfig()
	rcfg.Retries = b.cfg.Retries

	round := func(ctx context.Context, in []any) (runner.Result, error) {
		observers := append(monitor.Multi{newObserver()}, b.shared...)

		rc := b.cfg.RunnerConfig()
		rc.Observer = observers
		rc.Substrate = b.cfg.SubstrateFactory()
		r := runner.New(rc)

		log.Printf("Run %s: %d inputs, concurrency %d, timeout %s", r.RunID(), len(in), rc.MaxConcurrency, rc.Timeout)
		return r.Run(ctx, b.work, in)
	}

	return rerun.Run(ctx, rcfg, round, inputs.ToAny(b.inputs))
}

// executeTUI runs the batch behind the full-screen dashboard. Quitting the
// dashboard before the run ends aborts the run.
func (b *batch) executeTUI(ctx context.Context) (rerun.Report, error) {
	// The dashboard owns the terminal; diagnostics go to a log file.
	logFile, err := tea.LogToFile(filepath.Join(os.TempDir(), "taskwatch.log"), "taskwatch")
	if err != nil {
		return rerun.Report{}, fmt.Errorf("opening log file: %w", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		logFile.Close()
	}()

	bus := events.NewEventBus()
	defer bus.Close()

	publisher := monitor.NewPublisher(bus)
	model := tui.New(bus, len(b.inputs), b.cfg, b.paths.global, b.paths.project)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithOutput(b.stdout)}
	if b.inputsFromStdin {
		// Stdin carries the inputs; read keys from the terminal instead.
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(model, opts...)
	errChan := make(chan error, 1)
	go func() {
		final, err := p.Run()
		if m, ok := final.(tui.Model); ok && m.Quitting() {
			cancel()
		}
		errChan <- err
	}()

	report, runErr := b.rounds(runCtx, func() monitor.Observer { return publisher })

	// Closing the bus tells the dashboard the run is over; it stays up until the user quits.
	bus.Close()
	if ctx.Err() != nil {
		p.Quit()
	}

	if err := <-errChan; err != nil {
		log.Printf("ERROR: dashboard exited: %v", err)
	}
	return report, runErr
}
