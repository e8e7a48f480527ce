// pkg/interaction/validate.go
package interaction

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ValidateNonEmpty ensures the input is not empty.
func ValidateNonEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input cannot be empty")
	}
	return nil
}

// ValidateURL ensures a valid absolute URL.
func ValidateURL(input string) error {
	u, err := url.Parse(input)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("invalid URL (must be absolute)")
	}
	return nil
}

// ValidatePort accepts an empty answer (default applies) or 1..65535.
func ValidatePort(input string) error {
	if input == "" {
		return nil
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

// ValidateFile ensures the input names an existing regular file.
func ValidateFile(input string) error {
	info, err := os.Stat(input)
	if err != nil {
		return errors.New("file does not exist")
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	return nil
}

// ValidateNoShellMeta blocks shell metacharacters.
func ValidateNoShellMeta(input string) error {
	if strings.ContainsAny(input, "`$&|;<>(){}") {
		return errors.New("input contains unsafe shell characters")
	}
	return nil
}
