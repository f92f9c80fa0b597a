package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canaryhq/canary-agent/internal/remote"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the ingestion API and report whether it is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			logger, err := newLogger(s)
			if err != nil {
				return err
			}

			client, _ := newClient(logger)

			ok, err := client.Ping(cmd.Context(), s)
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			if !ok {
				return fmt.Errorf("ping: server did not reply pong")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "pong")
			return nil
		},
	}
}
