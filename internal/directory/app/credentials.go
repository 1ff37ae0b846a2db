package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// terminalFd returns the descriptor behind in when it is a terminal.
var terminalFd = func(in io.Reader) (int, bool) {
	f, ok := in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// ResolveCredentials fills cfg.Duo according to cfg.CredentialSource and
// checks that all three values are present. With the interactive source the
// integration key and host are read from in. The secret key is read without
// echo when in is a terminal and as a plain line otherwise, so piped input
// works. Values already configured are kept when the answer is left blank.
func ResolveCredentials(cfg *Config, in io.Reader, out io.Writer) error {
	if cfg.CredentialSource == SourceInteractive {
		reader := bufio.NewReader(in)

		ikey, err := promptLine(reader, out, `Please enter Admin API integration key ("DI..."): `)
		if err != nil {
			return fmt.Errorf("read integration key: %w", err)
		}
		if ikey != "" {
			cfg.Duo.IntegrationKey = ikey
		}

		skey, err := promptSecret(in, reader, out, "Please enter the secret key: ")
		if err != nil {
			return fmt.Errorf("read secret key: %w", err)
		}
		if skey != "" {
			cfg.Duo.SecretKey = skey
		}

		host, err := promptLine(reader, out, `Please enter the API hostname ("api-....duosecurity.com"): `)
		if err != nil {
			return fmt.Errorf("read api host: %w", err)
		}
		if host != "" {
			cfg.Duo.Host = host
		}
	}

	return cfg.ValidateCredentials()
}

// promptLine prints prompt and reads one trimmed line. EOF after partial
// input returns the partial line.
func promptLine(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads from the terminal behind in, or from reader when in is
// not a terminal. The buffered reader may already hold the secret line.
func promptSecret(in io.Reader, reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	fd, ok := terminalFd(in)
	if !ok {
		return promptLine(reader, w, prompt)
	}

	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	secret, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
