package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// errNotConfirmed is returned when a destructive command is declined.
var errNotConfirmed = errors.New("aborted: not confirmed (use --yes to skip the prompt)")

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user accepted the prompt (typed "y" or "yes")
	Accepted bool
	// Cancelled is true if reading input failed
	Cancelled bool
}

// Confirm asks a yes/no question. It returns immediately with Accepted=false
// when interactive is false, so scripts must pass --yes.
//
// The prompt defaults to "No" when the user presses Enter without input.
// Valid inputs: "y", "Y", "yes", "Yes", "YES" for acceptance; anything else declines.
func Confirm(writer io.Writer, reader io.Reader, interactive bool, question string) PromptResult {
	if !interactive {
		return PromptResult{Accepted: false}
	}

	fmt.Fprintf(writer, "? %s [y/N] ", question)

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		// EOF without error, e.g. Ctrl+D
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}

// stdinIsTerminal reports whether the command reads from an interactive
// terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && isTerminal(f)
}

// confirmOrAbort prompts unless yes is set and returns errNotConfirmed on a
// declined prompt.
func confirmOrAbort(cmd *cobra.Command, yes bool, question string) error {
	if yes {
		return nil
	}
	res := Confirm(cmd.OutOrStdout(), cmd.InOrStdin(), stdinIsTerminal(cmd), question)
	if !res.Accepted {
		return errNotConfirmed
	}
	return nil
}
