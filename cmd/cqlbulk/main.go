// Command cqlbulk is the CLI entrypoint for the streaming execution
// core (spec.md §6.4): load/unload/count verbs, a settings file, and
// dotted-key overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudshuttle/cqlbulk/internal/engine"
	"github.com/cloudshuttle/cqlbulk/pkg/bulkerrors"
	"github.com/cloudshuttle/cqlbulk/pkg/config"
	"github.com/cloudshuttle/cqlbulk/pkg/connector"
	"github.com/cloudshuttle/cqlbulk/pkg/driver"
	"github.com/cloudshuttle/cqlbulk/pkg/logger"
	"github.com/cloudshuttle/cqlbulk/pkg/mapping"
	"github.com/cloudshuttle/cqlbulk/pkg/metrics"
	"github.com/cloudshuttle/cqlbulk/pkg/observability"
)

var version = "0.1.0"

// Exit codes (spec.md §6.4).
const (
	exitSuccess       = 0
	exitCompletedErrs = 1
	exitConfigError   = 2
	exitAborted       = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var settingsFile string
	var executionIDFlag string
	var dryRun bool
	var connectorURLs []string
	var overridePairs []string
	var logLevel string

	root := &cobra.Command{
		Use:   "cqlbulk",
		Short: "cqlbulk - streaming bulk loader/unloader for a CQL cluster",
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cqlbulk v%s\n", version)
		},
	})

	registerRunFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&settingsFile, "settings", "f", "", "Path to a YAML settings file")
		cmd.Flags().StringVar(&executionIDFlag, "executionId", "", "Execution id template (overrides engine.executionId)")
		cmd.Flags().BoolVar(&dryRun, "dryRun", false, "Run without executing writes against the cluster")
		cmd.Flags().StringSliceVarP(&connectorURLs, "connector", "c", nil, "One or more connector resource URLs")
		cmd.Flags().StringArrayVar(&overridePairs, "set", nil, "dotted.key=value settings override, may be repeated")
		cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	}

	var exitCode int

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load records from a connector into the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = execRun(cmd.Context(), runArgs{
				mode:          engine.ModeLoad,
				settingsFile:  settingsFile,
				executionID:   executionIDFlag,
				dryRun:        dryRun,
				connectorURLs: connectorURLs,
				overrides:     overridePairs,
				logLevel:      logLevel,
			})
			return nil
		},
	}
	registerRunFlags(loadCmd)
	root.AddCommand(loadCmd)

	unloadCmd := &cobra.Command{
		Use:   "unload",
		Short: "Unload rows from the cluster into a connector",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = execRun(cmd.Context(), runArgs{
				mode:          engine.ModeUnload,
				settingsFile:  settingsFile,
				executionID:   executionIDFlag,
				dryRun:        dryRun,
				connectorURLs: connectorURLs,
				overrides:     overridePairs,
				logLevel:      logLevel,
			})
			return nil
		},
	}
	registerRunFlags(unloadCmd)
	root.AddCommand(unloadCmd)

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Validate mapping without writing to the cluster (spec.md §12)",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = execRun(cmd.Context(), runArgs{
				mode:          engine.ModeCount,
				settingsFile:  settingsFile,
				executionID:   executionIDFlag,
				dryRun:        dryRun,
				connectorURLs: connectorURLs,
				overrides:     overridePairs,
				logLevel:      logLevel,
			})
			return nil
		},
	}
	registerRunFlags(countCmd)
	root.AddCommand(countCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	return exitCode
}

type runArgs struct {
	mode          engine.Mode
	settingsFile  string
	executionID   string
	dryRun        bool
	connectorURLs []string
	overrides     []string
	logLevel      string
}

// execRun wires settings, connector, driver, and mapper into an Engine
// and maps the outcome to spec.md §6.4's exit codes.
func execRun(ctx context.Context, a runArgs) int {
	if err := logger.Init(logger.Config{Level: a.logLevel, Encoding: "json"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	log := logger.Get()

	if err := observability.Initialize(observability.DefaultConfig()); err != nil {
		log.Warn("observability init failed, continuing without tracing", zap.Error(err))
	}

	overrides, err := parseOverrides(a.overrides)
	if err != nil {
		log.Error("invalid --set override", zap.Error(err))
		return exitConfigError
	}

	settings, err := config.Load(a.settingsFile, overrides)
	if err != nil {
		log.Error("failed to load settings", zap.Error(err))
		return exitConfigError
	}
	if a.executionID != "" {
		settings.Engine.ExecutionID = a.executionID
	}
	if a.dryRun {
		settings.Engine.DryRun = true
	}
	if len(a.connectorURLs) > 0 {
		settings.Connector.URLs = a.connectorURLs
	}

	conn := connector.NewFile(connector.FileConfig{URLs: settings.Connector.URLs})
	drv := driver.NewMock()
	mapper := mapping.NewCSVMapper(settings.Schema.Query, ",")
	collector := metrics.NewCollector("cqlbulk")

	eng, err := engine.New(engine.Config{
		Settings:  *settings,
		Connector: conn,
		Driver:    drv,
		Mapper:    mapper,
		Metrics:   collector,
	})
	if err != nil {
		log.Error("failed to initialize engine", zap.Error(err))
		return exitConfigError
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := eng.Run(runCtx, a.mode)
	if runErr != nil {
		var berr *bulkerrors.Error
		if errors.As(runErr, &berr) && berr.Type == bulkerrors.ErrThreshold {
			log.Error("run aborted by error threshold", zap.Error(runErr))
			return exitAborted
		}
		log.Error("run failed", zap.Error(runErr))
		return exitConfigError
	}

	if report.Aborted {
		log.Error("run aborted by error threshold")
		return exitAborted
	}
	if report.TotalErrors > 0 {
		log.Warn("run completed with errors",
			zap.Int64("totalErrors", report.TotalErrors),
			zap.Int64("totalItems", report.TotalItems),
			zap.String("operationDir", report.OperationDir))
		return exitCompletedErrs
	}

	log.Info("run completed successfully",
		zap.Int64("totalItems", report.TotalItems),
		zap.String("operationDir", report.OperationDir))
	return exitSuccess
}

// parseOverrides turns "a.b.c=value" pairs into a dotted-key map
// (spec.md §6.4 "arbitrary configuration overrides on the command
// line").
func parseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		idx := strings.Index(p, "=")
		if idx < 0 {
			return nil, fmt.Errorf("invalid override %q, expected key=value", p)
		}
		out[p[:idx]] = p[idx+1:]
	}
	return out, nil
}
