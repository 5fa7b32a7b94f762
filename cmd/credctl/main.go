// Command credctl runs the credstore HTTP API and administers a store.
//
//	credctl serve        [flags]   HTTP API, /metrics and periodic cleanup
//	credctl cleanup      [flags]   purge expired refresh and reset records once
//	credctl register     [flags]   create an account
//	credctl user         [flags]   print a user profile by id
//	credctl reset-token  [flags]   issue a password reset token for an email
//
// Settings come from an optional config file (--config), then CREDSTORE_*
// environment variables, then command flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var errUsage = errors.New("usage")

const usage = `usage: credctl <command> [flags]

commands:
  serve        run the HTTP API
  cleanup      purge expired refresh and reset tokens
  register     create an account
  user         print a user profile
  reset-token  issue a password reset token

run "credctl <command> -h" for command flags
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	if err := c.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "credctl: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	// readPassword prompts on stderr and reads without echo.
	readPassword func(prompt string) (string, error)
}

func newCLI(stdin *os.File, stdout, stderr io.Writer) *cli {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	c.readPassword = c.promptPassword
	return c
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return errUsage
	}

	switch args[0] {
	case "serve":
		return c.serve(ctx, args[1:])
	case "cleanup":
		return c.cleanup(ctx, args[1:])
	case "register":
		return c.register(ctx, args[1:])
	case "user":
		return c.user(ctx, args[1:])
	case "reset-token":
		return c.resetToken(ctx, args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(c.stdout, usage)
		return nil
	}

	fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", args[0], usage)
	return errUsage
}
