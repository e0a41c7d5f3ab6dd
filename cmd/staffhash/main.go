// Command staffhash prints the argon2id hash to put under staff.accounts.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"civic-document-service/internal/service"

	"github.com/jessevdk/go-flags"
)

const minPasswordLength = 10

type options struct {
	Username string `short:"u" long:"username" required:"true" description:"Staff username"`
	Password string `long:"password" env:"STAFF_PASSWORD" description:"Password (read from stdin when empty)"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "staffhash: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, in io.Reader, out io.Writer) error {
	password := opts.Password
	if password == "" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := service.NewArgon2HashService().Hash(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "staff:\n  accounts:\n    %s: %q\n", opts.Username, hash)
	return err
}
