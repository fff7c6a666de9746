// Package cli implements the pinctl command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/pinauth/internal/app"
	"github.com/harrylevesque/pinauth/internal/config"
	"github.com/harrylevesque/pinauth/internal/storage"
	"github.com/harrylevesque/pinauth/internal/utils"
)

// Version is set at build time.
var Version = "dev"

type state struct {
	cfgFile string
	account string

	cfg *config.Config
	log *utils.Logger
}

// NewRootCmd builds a fresh pinctl command tree.
func NewRootCmd() *cobra.Command {
	s := &state{}

	cmd := &cobra.Command{
		Use:   "pinctl",
		Short: "Manage PIN codes protected by a device pepper",
		Long: `pinctl registers, verifies and changes PIN codes. PINs are encrypted
with a key derived from a device-bound pepper key and stored in a local
SQLite database.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s.log != nil {
				return s.log.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default: ./pinauth.yaml or <data dir>/pinauth.yaml)")
	cmd.PersistentFlags().StringVar(&s.account, "account", "", "account name (default \"default\")")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("data-dir", "", "directory for the database and pepper files")

	cmd.AddCommand(
		newValidateCmd(s),
		newRegisterCmd(s),
		newLoginCmd(s),
		newChangeCmd(s),
		newStatusCmd(s),
		newForgetCmd(s),
		newPepperCmd(s),
		newConfigCmd(s),
	)
	return cmd
}

func (s *state) load(cmd *cobra.Command) error {
	v, err := config.New(s.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("data_dir", flags.Lookup("data-dir")); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return err
	}
	s.cfg, s.log = cfg, logger
	return nil
}

// open builds the application; callers must Close it.
func (s *state) open(cmd *cobra.Command) (*app.App, error) {
	a, err := app.New(cmd.Context(), s.cfg, s.log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

func (s *state) accountName() string {
	if s.account == "" {
		return storage.DefaultAccount
	}
	return s.account
}
