package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canaryhq/canary-agent/internal/settings"
)

func newRegisterCmd() *cobra.Command {
	var signupKey string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Enroll this host with the ingestion API and print the assigned server id",
		Long: "register exchanges a signup key for a server id that identifies this host\n" +
			"to the ingestion API. It only performs the exchange and prints the result:\n" +
			"copy the printed id into canaryd.conf's server_id setting (or the\n" +
			"SERVER_ID environment variable) before running `canaryd run`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if signupKey == "" {
				return fmt.Errorf("register: --key is required")
			}

			s, err := settings.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("register: load settings: %w", err)
			}

			logger, err := newLogger(s)
			if err != nil {
				return err
			}

			client, _ := newClient(logger)

			hostname, err := os.Hostname()
			if err != nil {
				hostname = "unknown"
			}

			serverID, err := client.Register(cmd.Context(), signupKey, hostname, version, s)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if serverID == "" {
				return fmt.Errorf("register: server did not return a server_id")
			}

			fmt.Fprintln(cmd.OutOrStdout(), serverID)
			return nil
		},
	}

	cmd.Flags().StringVar(&signupKey, "key", "", "signup key issued by the ingestion API")
	return cmd
}
