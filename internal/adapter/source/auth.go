package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Credentials are an admin's email and password
type Credentials struct {
	Email    string
	Password string
}

// PromptCredentials asks for an email (unless given) and a hidden password.
// in must be a terminal for the password prompt; out receives the prompts.
func PromptCredentials(in *os.File, out io.Writer, email string) (*Credentials, error) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Admin Login")
	fmt.Fprintln(out, "━━━━━━━━━━━")

	if email == "" {
		fmt.Fprint(out, "Email: ")
		reader := bufio.NewReader(in)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	fmt.Fprint(out, "Password: ")
	passwordBytes, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out) // Newline after hidden input
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return &Credentials{Email: email, Password: string(passwordBytes)}, nil
}
