package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/pinauth/internal/auth"
	"github.com/harrylevesque/pinauth/internal/models"
)

func newValidateCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a PIN against the registration or login policy",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "registration <pin>",
			Short: "Validate a PIN for registration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m := auth.NewPinCodeManager(s.cfg.PinCodeSize, nil, nil)
				return report(cmd, m.ValidateRegistration(models.PinCode(args[0])))
			},
		},
		&cobra.Command{
			Use:   "login <pin>",
			Short: "Validate a PIN for login",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m := auth.NewPinCodeManager(s.cfg.PinCodeSize, nil, nil)
				return report(cmd, m.ValidateLogin(models.PinCode(args[0])))
			},
		},
	)
	return cmd
}

func newRegisterCmd(s *state) *cobra.Command {
	var pinFlag string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a PIN, replacing any existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := readPin(cmd, pinFlag, "New PIN: ")
			if err != nil {
				return err
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Service.Register(cmd.Context(), s.accountName(), pin); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PIN registered.")
			return nil
		},
	}
	cmd.Flags().StringVar(&pinFlag, "pin", "", "PIN to register (prompted if omitted)")
	return cmd
}

func newLoginCmd(s *state) *cobra.Command {
	var pinFlag string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify a PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := readPin(cmd, pinFlag, "PIN: ")
			if err != nil {
				return err
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Service.Login(cmd.Context(), s.accountName(), pin); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PIN accepted.")
			return nil
		},
	}
	cmd.Flags().StringVar(&pinFlag, "pin", "", "PIN to verify (prompted if omitted)")
	return cmd
}

func newChangeCmd(s *state) *cobra.Command {
	var oldFlag, newFlag string
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change the registered PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPin, err := readPin(cmd, oldFlag, "Current PIN: ")
			if err != nil {
				return err
			}
			newPin, err := readPin(cmd, newFlag, "New PIN: ")
			if err != nil {
				return err
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Service.ChangePin(cmd.Context(), s.accountName(), oldPin, newPin); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PIN changed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&oldFlag, "old-pin", "", "current PIN (prompted if omitted)")
	cmd.Flags().StringVar(&newFlag, "new-pin", "", "new PIN (prompted if omitted)")
	return cmd
}

func newStatusCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registration and lockout state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.Service.Status(cmd.Context(), s.accountName())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func newForgetCmd(s *state) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete the stored PIN and its attempt counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the PIN of %q without --yes", s.accountName())
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Service.Forget(cmd.Context(), s.accountName()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PIN deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// report prints the outcome of a validation.
func report(cmd *cobra.Command, err error) error {
	if err != nil {
		return describe(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}

// describe turns service errors into user-facing messages. Crypto failures
// keep their cause for the operator running the command.
func describe(err error) error {
	switch auth.Kind(err) {
	case auth.KindPinCodeIsEmpty:
		return fmt.Errorf("the PIN must not be empty")
	case auth.KindPinCodeTooShort:
		return err
	case auth.KindPinCodeMismatch:
		return fmt.Errorf("wrong PIN")
	case auth.KindLockedOut:
		return fmt.Errorf("too many failed attempts, the PIN is locked")
	case auth.KindNoPinCode:
		return fmt.Errorf("no PIN registered, run 'pinctl register' first")
	case auth.KindPinCodeExists:
		return fmt.Errorf("a PIN is already registered, run 'pinctl change' to replace it")
	case auth.KindInvalidEncoding:
		return fmt.Errorf("the PIN is not valid UTF-8")
	default:
		return fmt.Errorf("cannot proceed: %w", err)
	}
}
