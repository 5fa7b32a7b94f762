package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/credstore"
	"golang.org/x/term"
)

// open builds a logger and engine from s. Logs go to stderr so command
// output on stdout stays machine readable.
func (c *cli) open(ctx context.Context, s settings) (*runtime, error) {
	log, err := newLogger(s.Log, c.stderr)
	if err != nil {
		return nil, err
	}
	return openEngine(ctx, s, log)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) cleanup(ctx context.Context, args []string) error {
	fs, common := c.newFlagSet("cleanup")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := common.load()
	if err != nil {
		return err
	}

	rt, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.engine.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	return c.printJSON(res)
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs, common := c.newFlagSet("register")
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password; prompted for when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := common.load()
	if err != nil {
		return err
	}

	pw := *password
	if pw == "" {
		if pw, err = c.readPassword("Password: "); err != nil {
			return err
		}
	}

	rt, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.close()

	user, err := rt.engine.Register(ctx, *username, *email, pw)
	if err != nil {
		return err
	}
	return c.printJSON(user)
}

func (c *cli) user(ctx context.Context, args []string) error {
	fs, common := c.newFlagSet("user")
	id := fs.String("id", "", "user id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: --id is required", errUsage)
	}
	s, err := common.load()
	if err != nil {
		return err
	}

	rt, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.close()

	profile, err := rt.engine.GetUserByID(ctx, *id)
	if err != nil {
		return err
	}
	if profile == nil {
		return credstore.ErrUserNotFound
	}
	return c.printJSON(profile)
}

// resetToken prints a raw reset token. It refuses to run without a
// configured secret: a token digested under a throwaway secret could never
// be consumed by another process.
func (c *cli) resetToken(ctx context.Context, args []string) error {
	fs, common := c.newFlagSet("reset-token")
	email := fs.String("email", "", "account email")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := common.load()
	if err != nil {
		return err
	}
	if s.Secret == "" {
		return errors.New("reset-token needs a configured secret (CREDSTORE_SECRET or JWT_SECRET)")
	}

	rt, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.engine.GenerateResetToken(ctx, *email)
	if err != nil {
		return err
	}
	return c.printJSON(res)
}

func (c *cli) promptPassword(prompt string) (string, error) {
	fd := int(c.stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: pass --password or run in a terminal")
	}

	fmt.Fprint(c.stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(c.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(string(raw), "\r\n")
	if pw == "" {
		return "", errors.New("password required")
	}
	return pw, nil
}
