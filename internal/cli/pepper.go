package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/pinauth/internal/pepper"
)

func newPepperCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pepper",
		Short: "Manage the device pepper key",
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the pepper; every stored PIN becomes unreadable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the pepper without --yes")
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Pepper.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pepper deleted.")
			return nil
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the pepper if it does not exist",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.open(cmd)
				if err != nil {
					return err
				}
				defer a.Close()
				m, err := a.Pepper.Init(cmd.Context())
				if err != nil {
					return err
				}
				printMaterial(cmd, s.cfg.Pepper.Backend, s.cfg.Algorithm, m)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the pepper key id and metadata",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.open(cmd)
				if err != nil {
					return err
				}
				defer a.Close()
				m, err := a.Pepper.Material(cmd.Context())
				if err != nil {
					return err
				}
				printMaterial(cmd, s.cfg.Pepper.Backend, s.cfg.Algorithm, m)
				return nil
			},
		},
		reset,
	)
	return cmd
}

func printMaterial(cmd *cobra.Command, backend, alg string, m *pepper.Material) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend:    %s\n", backend)
	fmt.Fprintf(out, "algorithm:  %s\n", alg)
	fmt.Fprintf(out, "key id:     %s\n", m.KeyID())
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(out, "created at: %s\n", m.CreatedAt.Format(time.RFC3339))
	}
}
