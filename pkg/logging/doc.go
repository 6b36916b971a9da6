// Package logging provides a structured logging system that supports both
// CLI and TUI execution modes with unified log handling and flexible
// output formatting.
//
// # Architecture
//
// ## Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// ## Execution Modes
//   - **CLI Mode**: Direct logging to specified output writer (stdout/stderr)
//   - **TUI Mode**: Logging via buffered channel for consumption by a
//     terminal UI
//
// # Usage
//
//	import "github.com/stratumtest/stratum/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Scheduler", "starting run with %d components", n)
//	logging.Error("Executor", err, "component %s failed", path)
//
// # Thread Safety
//
// Concurrent logging from multiple goroutines is safe; channel operations
// in TUI mode are non-blocking, falling back to stderr on overflow.
package logging
