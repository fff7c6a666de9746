package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harrylevesque/pinauth/internal/models"
)

// readPin returns flagValue if set. Otherwise it prompts without echo on a
// terminal, or reads one line from stdin.
func readPin(cmd *cobra.Command, flagValue, prompt string) (models.PinCode, error) {
	if flagValue != "" {
		return models.PinCode(flagValue), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read PIN: %w", err)
		}
		pin := models.PinCode(b)
		models.Zero(b)
		return pin, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return models.PinCode(strings.TrimRight(line, "\r\n")), nil
}
