package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "to dev") {
		t.Errorf("expected output to contain 'to dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "to 1.0.0") {
		t.Errorf("expected output to contain 'to 1.0.0', got: %s", out)
	}
	if !strings.Contains(out, "built: 2026-01-01") {
		t.Errorf("expected output to contain 'built: 2026-01-01', got: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Train Order") {
		t.Errorf("expected help output to contain 'Train Order', got: %s", out)
	}
	for _, sub := range []string{"serve", "poll", "roster", "configure", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestExecuteSuccess(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{})
	if code := execute(cmd); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestExecuteError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("intentional error")
		},
	}
	if code := execute(cmd); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestServeCmdHasConfigFlag(t *testing.T) {
	cmd := newServeCmd()
	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		t.Fatal("serve command missing --config flag")
	}
	if flag.Shorthand != "c" {
		t.Errorf("config shorthand = %q, want c", flag.Shorthand)
	}
}

func TestPollCmdHasConfigFlag(t *testing.T) {
	cmd := newPollCmd()
	if cmd.Flags().Lookup("config") == nil {
		t.Fatal("poll command missing --config flag")
	}
}

func TestConfigureCmd_WritesToken(t *testing.T) {
	// Covered in configure_test.go; presence check here keeps the root
	// command wiring honest.
	cmd := newRootCmd()
	found := false
	for _, sub := range cmd.Commands() {
		if strings.HasPrefix(sub.Use, "configure") {
			found = true
		}
	}
	if !found {
		t.Error("root command missing configure subcommand")
	}
}
