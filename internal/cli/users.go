package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sakif/companyblog/internal/form"
	"github.com/sakif/companyblog/internal/server"
)

func newUsersCmd(a *app) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	users.AddCommand(newUsersCreateCmd(a))
	return users
}

func newUsersCreateCmd(a *app) *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with email and password",
		Long: `Create an account with the same rules as the registration form.

The password is read from the terminal without echo. When stdin is not a
terminal, the password and its confirmation are read as two lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := newPasswordReader(cmd.InOrStdin())

			password, err := in.read(out, "Enter password: ")
			if err != nil {
				return err
			}
			confirm, err := in.read(out, "Confirm password: ")
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), a.cfg, a.cfg.NewLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer srv.Close()

			user, err := srv.Accounts().Register(cmd.Context(), form.RegistrationForm{
				Email:       strings.TrimSpace(email),
				Username:    strings.TrimSpace(username),
				Password:    password,
				PassConfirm: confirm,
			})
			if err != nil {
				var errs form.Errors
				if errors.As(err, &errs) {
					printFormErrors(cmd.ErrOrStderr(), errs)
					return errors.New("user not created")
				}
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Fprintf(out, "User '%s' created successfully (id %s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func printFormErrors(w io.Writer, errs form.Errors) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range errs[field] {
			fmt.Fprintf(w, "  %s: %s\n", field, msg)
		}
	}
}

// passwordReader reads secrets from a terminal without echo, or line by line
// from anything else (pipes, tests).
type passwordReader struct {
	tty   *os.File
	lines *bufio.Reader
}

func newPasswordReader(in io.Reader) *passwordReader {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &passwordReader{tty: f}
	}
	return &passwordReader{lines: bufio.NewReader(in)}
}

func (p *passwordReader) read(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	if p.tty != nil {
		b, err := term.ReadPassword(int(p.tty.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)
	return strings.TrimRight(line, "\r\n"), nil
}
