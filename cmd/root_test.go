package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "stratum" {
		t.Errorf("Expected Use to be 'stratum', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "stratum version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})

	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "stratum version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestFlagsAreRegisteredWithDefaults(t *testing.T) {
	expected := map[string]string{
		"max-concurrency":             "",
		"filter":                      "",
		"use-child-processes":         "false",
		"child-process-target":       "",
		"warn-threshold-seconds":      "1",
		"critical-threshold-seconds":  "5",
		"console-output":              "console",
		"console-output-style":        "pretty",
		"console-output-detail-level": "all",
		"console-output-encoding":     "utf8",
		"console-output-ansi-mode":    "auto",
	}

	for name, want := range expected {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected flag %q to be registered", name)
			continue
		}
		if name == "max-concurrency" {
			continue // value is runtime.NumCPU()-derived, not a fixed literal
		}
		if flag.DefValue != want {
			t.Errorf("flag %q default = %q, want %q", name, flag.DefValue, want)
		}
	}
}

func TestUseChildProcessesAndChildProcessTargetAreMutuallyExclusive(t *testing.T) {
	originalRunE := rootCmd.RunE
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error { return nil }
	defer func() { rootCmd.RunE = originalRunE }()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--use-child-processes", "--child-process-target", "suite::test"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err == nil {
		t.Error("expected mutually exclusive flags to produce an error")
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	testRootCmd := &cobra.Command{
		Use:   "stratum",
		Short: "Run a registered hierarchical test tree",
		Long: `stratum executes the suites, tests, setups, and teardowns registered
by a test binary's own init() functions, scheduling them under a single
concurrency budget while respecting each suite's serial/parallel mode and
cascade-failure rules.`,
		SilenceUsage: true,
	}
	testRootCmd.SetOut(&buf)
	testRootCmd.SetArgs([]string{"--help"})

	if err := testRootCmd.Execute(); err != nil {
		t.Fatalf("Error executing help command: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "stratum") {
		t.Errorf("Help output should contain 'stratum'. Got: %q", output)
	}
	if !strings.Contains(output, "scheduling them under a single") {
		t.Errorf("Help output should contain the long description. Got: %q", output)
	}
}
