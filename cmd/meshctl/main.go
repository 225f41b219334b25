// Command meshctl is the operator CLI: it can run the Mesh Resolver and
// Config Synthesizer entirely offline (generate), or drive a running
// meshd over its HTTP surface (deploy, apply, status, audit).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshctl",
		Short: "Operate a WireGuard mesh provisioning service",
	}
	root.PersistentFlags().String("server", "http://127.0.0.1:8787", "meshd base URL")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newDeployCmd())
	root.AddCommand(newApplyCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newAuditCmd())
	return root
}
