package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tphummel/lab_inventory/internal/authclient"
	"github.com/tphummel/lab_inventory/internal/resource"
	"golang.org/x/term"
)

// readSecret prompts for a value without echo on a terminal, and reads one
// line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := a.authClient()
			if err != nil {
				return err
			}
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				if password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			if err := auth.Login(cmd.Context(), username, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg authclient.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := a.authClient()
			if err != nil {
				return err
			}
			if reg.Password == "" {
				if reg.Password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
				if reg.ConfirmPassword, err = readSecret(cmd, "Confirm password: "); err != nil {
					return err
				}
			}
			userID, err := auth.Register(cmd.Context(), reg)
			if err != nil {
				return registrationError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s). Run 'invctl login' to sign in.\n", reg.Username, userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&reg.ConfirmPassword, "confirm-password", "", "Password again")
	return cmd
}

// registrationError lists per-field messages one per line.
func registrationError(err error) error {
	var re *resource.Error
	if !errors.As(err, &re) || len(re.Fields) == 0 {
		return fmt.Errorf("registration failed: %w", err)
	}
	fields := make([]string, 0, len(re.Fields))
	for f := range re.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("registration failed:")
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, re.Fields[f])
	}
	return fmt.Errorf("%s", b.String())
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and clear the session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := a.authClient()
			if err != nil {
				return err
			}
			if err := auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
