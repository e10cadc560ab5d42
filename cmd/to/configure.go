package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newConfigureCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Store API tokens in the config file",
		Long:  "Prompts for the store and gateway tokens without echoing and writes them into the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(configPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	return cmd
}

func runConfigure(configPath string, out io.Writer) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("configure: read %s: %w", configPath, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("configure: parse %s: %w", configPath, err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}

	storeToken, err := promptSecret(out, "Store token: ")
	if err != nil {
		return err
	}
	gatewayToken, err := promptSecret(out, "Gateway token: ")
	if err != nil {
		return err
	}

	if storeToken != "" {
		setToken(doc, "store", storeToken)
	}
	if gatewayToken != "" {
		setToken(doc, "gateway", gatewayToken)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configure: marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("configure: write %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Tokens written to %s\n", configPath)
	return nil
}

// promptSecret reads a token without echoing when stdin is a terminal. An
// empty answer leaves the existing value untouched.
func promptSecret(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("configure: read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("configure: read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func setToken(doc map[string]any, section, token string) {
	sub, ok := doc[section].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		doc[section] = sub
	}
	sub["token"] = token
}
