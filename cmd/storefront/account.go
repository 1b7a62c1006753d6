package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/domain"
)

func (c *cli) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(c.stdin)
			if email == "" {
				email = c.prompt(in, "Email: ")
			}
			if password == "" {
				password = c.promptSecret(in, "Password: ")
			}

			err := c.track(audit.CategorySession, "login", func(ctx context.Context) error {
				return c.app.Login(ctx, email, password)
			})
			if err != nil {
				return err
			}
			return c.emit(c.app.Session().Snapshot(), c.renderer().Session(c.app.Session().Snapshot()))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var reg domain.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(c.stdin)
			if reg.FullName == "" {
				reg.FullName = c.prompt(in, "Full name: ")
			}
			if reg.Email == "" {
				reg.Email = c.prompt(in, "Email: ")
			}
			if reg.Password == "" {
				reg.Password = c.promptSecret(in, "Password: ")
			}

			err := c.track(audit.CategorySession, "register", func(ctx context.Context) error {
				return c.app.Register(ctx, reg)
			})
			if err != nil {
				return err
			}
			return c.emit(map[string]string{"registered": reg.Email},
				"Registration successful. Run 'storefront login' to sign in.\n")
		},
	}

	cmd.Flags().StringVar(&reg.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.track(audit.CategorySession, "logout", func(context.Context) error {
				return c.app.Logout()
			})
			if err != nil {
				return err
			}
			return c.emit(c.app.Session().Snapshot(), "Logged out\n")
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.app.Session().Snapshot()
			return c.emit(snap, c.renderer().Session(snap))
		},
	}
}

// prompt reads one line from in after writing label to stderr.
func (c *cli) prompt(in *bufio.Reader, label string) string {
	fmt.Fprint(c.stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimSpace(line)
}

// promptSecret reads without echo when stdin is a terminal.
func (c *cli) promptSecret(in *bufio.Reader, label string) string {
	f, ok := c.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return c.prompt(in, label)
	}
	fmt.Fprint(c.stderr, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.stderr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(secret))
}
