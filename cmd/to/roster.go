package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/store"
)

func newRosterCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List the account's agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			client := store.NewClient(cfg.Store.BaseURL, cfg.Store.Token, cfg.Store.Account, cfg.Store.Timeout)
			agents, err := client.ListAgents(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents registered.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tHEARTBEAT\tSESSION")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.Name, a.Role, a.HeartbeatInterval(), a.SessionKey)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	return cmd
}
