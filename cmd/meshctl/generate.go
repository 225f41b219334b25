package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/mesh"
	"github.com/meshwire/wgmesh/pkg/synth"
)

func newGenerateCmd() *cobra.Command {
	var output string
	var pskKind string

	cmd := &cobra.Command{
		Use:   "generate <spec.yaml|spec.json>",
		Short: "Resolve a mesh spec and write the config archive, entirely offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadMeshSpec(args[0])
			if err != nil {
				return err
			}

			resolved, err := mesh.Resolve(spec)
			if err != nil {
				return fmt.Errorf("resolve mesh: %w", err)
			}

			strategy, err := pskStrategyByName(pskKind)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()

			manifest, err := synth.GenerateZip(f, resolved, strategy)
			if err != nil {
				return fmt.Errorf("generate archive: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d nodes, %d clients\n", output, len(manifest.Nodes), len(manifest.Clients))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "wg-mesh-config.zip", "output archive path")
	cmd.Flags().StringVar(&pskKind, "psk-strategy", "deterministic", "preshared key strategy: deterministic|random|hkdf")
	return cmd
}

func pskStrategyByName(kind string) (keys.PSKStrategy, error) {
	switch kind {
	case "deterministic", "":
		return keys.DeterministicPSK{}, nil
	case "random":
		return keys.NewRandomPSK(), nil
	case "hkdf":
		return keys.NewHKDFPSK(nil)
	default:
		return nil, fmt.Errorf("unknown psk strategy %q", kind)
	}
}
