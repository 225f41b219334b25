package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List interfaces known to a running meshd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")

			var body struct {
				Interfaces []struct {
					Name       string `json:"name"`
					IsUp       bool   `json:"isUp"`
					ListenPort int    `json:"listenPort"`
					PeerCount  int    `json:"peerCount"`
					LastSyncAt string `json:"lastSyncAt"`
				} `json:"interfaces"`
			}
			if err := callJSON("GET", server+"/api/interfaces", nil, &body); err != nil {
				return fmt.Errorf("status: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUP\tPORT\tPEERS\tLAST SYNC")
			for _, iface := range body.Interfaces {
				fmt.Fprintf(tw, "%s\t%v\t%d\t%d\t%s\n", iface.Name, iface.IsUp, iface.ListenPort, iface.PeerCount, iface.LastSyncAt)
			}
			return tw.Flush()
		},
	}
	return cmd
}
