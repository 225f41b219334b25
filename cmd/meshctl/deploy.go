package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "deploy <spec.yaml|spec.json>",
		Short: "Resolve a mesh spec and deploy one node's interface to a running meshd",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" {
				return fmt.Errorf("--node is required")
			}
			spec, err := loadMeshSpec(args[0])
			if err != nil {
				return err
			}

			server, _ := cmd.Flags().GetString("server")
			body := map[string]interface{}{"payload": spec, "nodeName": node}

			var details map[string]interface{}
			if err := callJSON("POST", server+"/api/deploy", body, &details); err != nil {
				return fmt.Errorf("deploy: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deployed interface %v at revision %v\n", details["name"], details["revision"])
			return nil
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "node name within the spec to deploy")
	return cmd
}
