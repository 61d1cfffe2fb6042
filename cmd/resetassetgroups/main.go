package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/cli"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/config"
)

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Args[1:], cli.DefaultDeps())
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code. Failure
// messages go to out, next to the progress output.
func run(ctx context.Context, out io.Writer, args []string, deps cli.Deps) int {
	deps.Stdout = out
	err := cli.Run(ctx, args, deps)
	if err == nil {
		return cli.ExitOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(out, exitErr.Message)
		return exitErr.Code
	}
	fmt.Fprintln(out, err)
	return cli.ExitUsage
}
