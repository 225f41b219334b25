package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshwire/wgmesh/pkg/model"
)

func newApplyCmd() *cobra.Command {
	var iface string
	var revision uint64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <ops.json>",
		Short: "Apply a revision-checked batch of peer operations against a running meshd",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iface == "" {
				return fmt.Errorf("--interface is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read ops file: %w", err)
			}
			var ops []model.PeerOperation
			if err := json.Unmarshal(data, &ops); err != nil {
				return fmt.Errorf("parse ops file: %w", err)
			}

			server, _ := cmd.Flags().GetString("server")
			req := model.ApplyRequest{Revision: revision, DryRun: dryRun, Operations: ops}

			var result map[string]interface{}
			url := fmt.Sprintf("%s/api/interface/%s/peers/apply", server, iface)
			if err := callJSON("POST", url, req, &result); err != nil {
				return fmt.Errorf("apply: %w", err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "", "interface name")
	cmd.Flags().Uint64Var(&revision, "revision", 0, "expected current revision")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and print the plan without applying it")
	return cmd
}
