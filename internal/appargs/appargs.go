// Package appargs provides positional argument validation for the
// github.com/urfave/cli commands of the diagnostic tools.
package appargs

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/insurance"
	"github.com/appstract/appstract/internal/vfs"
)

// Validator is an argument validator function. It returns the number of
// arguments consumed or -1 on error.
type Validator = func([]string) int

// String is a validator for a single required parameter.
func String(args []string) int {
	if len(args) == 0 {
		return -1
	}
	return 1
}

// NonEmptyString is a validator for a single required parameter that must
// not be empty.
func NonEmptyString(args []string) int {
	if len(args) == 0 || args[0] == "" {
		return -1
	}
	return 1
}

// Optional wraps a validator so that a missing argument is accepted.
func Optional(v Validator) Validator {
	return func(args []string) int {
		if len(args) == 0 {
			return 0
		}
		return v(args)
	}
}

// Rest wraps a validator to consume every remaining argument; at least one
// must be present.
func Rest(v Validator) Validator {
	return func(args []string) int {
		if len(args) == 0 {
			return -1
		}
		for i := range args {
			if v(args[i:i+1]) != 1 {
				return -1
			}
		}
		return len(args)
	}
}

// PID is a validator for a positive process id.
func PID(args []string) int {
	if len(args) == 0 {
		return -1
	}
	if n, err := strconv.Atoi(args[0]); err != nil || n <= 0 {
		return -1
	}
	return 1
}

// Time is a validator for a transaction time in insurance.TimeFormat. The
// format contains a space, so the time may be passed as one argument or as
// date and clock.
func Time(args []string) int {
	if len(args) == 0 {
		return -1
	}
	if _, err := time.Parse(insurance.TimeFormat, args[0]); err == nil {
		return 1
	}
	if len(args) > 1 {
		if _, err := time.Parse(insurance.TimeFormat, args[0]+" "+args[1]); err == nil {
			return 2
		}
	}
	return -1
}

// Component is a validator for a component display name.
func Component(args []string) int {
	if len(args) == 0 {
		return -1
	}
	if _, err := component.Parse(args[0]); err != nil {
		return -1
	}
	return 1
}

// Disposition is a validator for a creation disposition name.
func Disposition(args []string) int {
	if len(args) == 0 {
		return -1
	}
	if _, err := vfs.ParseDisposition(args[0]); err != nil {
		return -1
	}
	return 1
}

// ErrInvalidUsage is returned when there is a validation error.
var ErrInvalidUsage = errors.New("invalid command usage")

// Validate can be used as a command's Before function to validate the
// arguments to the command.
func Validate(vs ...Validator) cli.BeforeFunc {
	return func(c *cli.Context) error {
		remaining := []string(c.Args())
		for i, v := range vs {
			consumed := v(remaining)
			if consumed < 0 {
				return errors.Wrapf(ErrInvalidUsage, "argument %d of %q", i+1, c.Command.ArgsUsage)
			}
			remaining = remaining[consumed:]
		}
		if len(remaining) > 0 {
			return errors.Wrapf(ErrInvalidUsage, "unexpected arguments %q", remaining)
		}
		return nil
	}
}

// ParseTime joins the arguments accepted by Time and parses them.
func ParseTime(args []string) (time.Time, int, error) {
	n := Time(args)
	switch n {
	case 1:
		t, err := time.Parse(insurance.TimeFormat, args[0])
		return t, n, err
	case 2:
		t, err := time.Parse(insurance.TimeFormat, args[0]+" "+args[1])
		return t, n, err
	}
	return time.Time{}, 0, errors.Wrapf(ErrInvalidUsage, "expected a time formatted as %q", insurance.TimeFormat)
}
