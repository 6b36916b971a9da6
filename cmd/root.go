// Package cmd wires the CLI flag surface onto the stratum run entrypoint.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratumtest/stratum"
	"github.com/stratumtest/stratum/internal/config"
	"github.com/stratumtest/stratum/internal/params"
)

// Exit codes. 0/1 follow the run's own outcome (invalid parameters and an
// unbuildable tree also exit 1); 2 marks a flag or configuration-loading
// error returned before the run started.
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeSetup   = 2
)

var (
	flagMaxConcurrency       int
	flagFilter               string
	flagUseChildProcesses    bool
	flagChildProcessTarget   string
	flagWarnThresholdSecs    int
	flagCriticalThresholdSecs int
	flagConsoleOutput        string
	flagConsoleOutputStyle   string
	flagConsoleOutputDetail  string
	flagConsoleOutputEncoding string
	flagConsoleOutputAnsiMode string
	flagConfigPath           string
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Run a registered hierarchical test tree",
	Long: `stratum executes the suites, tests, setups, and teardowns registered
by a test binary's own init() functions, scheduling them under a single
concurrency budget while respecting each suite's serial/parallel mode and
cascade-failure rules.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

var version = "dev"

// SetVersion sets the version string shown by --version.
func SetVersion(v string) { version = v; rootCmd.Version = v }

// Execute runs the CLI, exiting the process with the derived exit code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stratum version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeSetup)
	}
}

func init() {
	rootCmd.Flags().IntVar(&flagMaxConcurrency, "max-concurrency", params.RecommendedMaxConcurrency(), "total cap on in-flight components")
	rootCmd.Flags().StringVar(&flagFilter, "filter", "", "run only the leaf matching PATH (exact match)")
	rootCmd.Flags().BoolVar(&flagUseChildProcesses, "use-child-processes", false, "execute each leaf in its own re-exec'd process")
	rootCmd.Flags().StringVar(&flagChildProcessTarget, "child-process-target", "", "internal: marks this invocation as a child executing a single leaf")
	rootCmd.Flags().IntVar(&flagWarnThresholdSecs, "warn-threshold-seconds", 1, "default warn timing threshold, in seconds")
	rootCmd.Flags().IntVar(&flagCriticalThresholdSecs, "critical-threshold-seconds", 5, "default critical timing threshold, in seconds")
	rootCmd.Flags().StringVar(&flagConsoleOutput, "console-output", "console", "output formatter selector")
	rootCmd.Flags().StringVar(&flagConsoleOutputStyle, "console-output-style", "pretty", "formatter style knob")
	rootCmd.Flags().StringVar(&flagConsoleOutputDetail, "console-output-detail-level", "all", "formatter detail-level knob (all|failures)")
	rootCmd.Flags().StringVar(&flagConsoleOutputEncoding, "console-output-encoding", "utf8", "formatter encoding knob")
	rootCmd.Flags().StringVar(&flagConsoleOutputAnsiMode, "console-output-ansi-mode", "auto", "formatter ANSI color mode (auto|always|never)")
	rootCmd.Flags().StringVar(&flagConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "ambient configuration directory")

	rootCmd.MarkFlagsMutuallyExclusive("use-child-processes", "child-process-target")
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "received interrupt, stopping scheduled components...")
		cancel()
	}()

	p, err := stratum.Load(flagConfigPath, changedOverrides(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	outcome := stratum.Run(ctx, stratum.RunOptions{Parameters: p})
	if outcome.ExitCode != ExitCodeSuccess {
		os.Exit(outcome.ExitCode)
	}
	return nil
}

// changedOverrides reports only the flags the user actually passed on this
// invocation, via cobra's own Changed bookkeeping, so an unset flag's
// built-in default never masks a value the ambient config file set.
func changedOverrides(cmd *cobra.Command) stratum.Overrides {
	f := cmd.Flags()
	var o stratum.Overrides

	if f.Changed("max-concurrency") {
		o.MaxConcurrency = &flagMaxConcurrency
	}
	if f.Changed("filter") {
		o.Filter = &flagFilter
	}
	if f.Changed("use-child-processes") {
		o.UseChildProcesses = &flagUseChildProcesses
	}
	if f.Changed("child-process-target") {
		o.ChildProcessTarget = &flagChildProcessTarget
	}
	if f.Changed("warn-threshold-seconds") {
		d := time.Duration(flagWarnThresholdSecs) * time.Second
		o.WarnThreshold = &d
	}
	if f.Changed("critical-threshold-seconds") {
		d := time.Duration(flagCriticalThresholdSecs) * time.Second
		o.CriticalThreshold = &d
	}
	if f.Changed("console-output") {
		o.ConsoleOutput = &flagConsoleOutput
	}
	if f.Changed("console-output-style") {
		o.ConsoleOutputStyle = &flagConsoleOutputStyle
	}
	if f.Changed("console-output-detail-level") {
		o.ConsoleOutputDetailLevel = &flagConsoleOutputDetail
	}
	if f.Changed("console-output-encoding") {
		o.ConsoleOutputEncoding = &flagConsoleOutputEncoding
	}
	if f.Changed("console-output-ansi-mode") {
		o.ConsoleOutputAnsiMode = &flagConsoleOutputAnsiMode
	}
	return o
}
