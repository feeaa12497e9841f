// Command adcarbon records marketing activities and estimates their CO2e
// emissions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rshade/adcarbon/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // set by the linker

func main() {
	err := run()
	if err != nil {
		var thresholdErr *cli.ThresholdExitError
		if errors.As(err, &thresholdErr) {
			fmt.Fprintln(os.Stderr, thresholdErr.Error())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(extractExitCode(err))
}

func run() error {
	return cli.NewRootCmd(version).ExecuteContext(context.Background())
}

// extractExitCode maps an error to the process exit code: 0 for nil, the
// threshold's code for a ThresholdExitError and 1 otherwise.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var thresholdErr *cli.ThresholdExitError
	if errors.As(err, &thresholdErr) {
		return thresholdErr.ExitCode
	}
	return 1
}
