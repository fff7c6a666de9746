package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/pepper"
)

func main() {
	var dir, algName string

	cmd := &cobra.Command{
		Use:          "genpepper",
		Short:        "Write a new pepper key and initial vector to a directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := crypto.ParseAlgorithm(algName)
			if err != nil {
				return err
			}
			backend := pepper.NewFileBackend(dir)
			m, err := pepper.NewMaterial(alg)
			if err != nil {
				return err
			}
			err = backend.Save(cmd.Context(), m)
			if errors.Is(err, pepper.ErrPepperExists) {
				return fmt.Errorf("a pepper key already exists in %s, refusing to overwrite", dir)
			}
			if err != nil {
				return fmt.Errorf("failed to write pepper: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pepper %s written to %s\n", m.KeyID(), backend.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "pepper", "output directory")
	cmd.Flags().StringVar(&algName, "algorithm", string(crypto.DefaultAlgorithm), "AEAD the initial vector is sized for")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
