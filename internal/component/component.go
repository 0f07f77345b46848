// Package component names shared components (assemblies) placed in the
// host-wide shared store.
package component

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidComponent is returned when an identifier fails validation or
// cannot be parsed.
var ErrInvalidComponent = errors.New("invalid component identifier")

const (
	neutralCulture = "neutral"
	nullToken      = "null"
)

// ID identifies a shared component. It is a comparable value type: two IDs
// are the same component exactly when all fields are equal.
type ID struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Culture        string `json:"culture"`
	PublicKeyToken string `json:"token"`
}

// New returns a normalized ID. The culture `neutral` is stored as the empty
// string and the public key token is lower-cased, so that identifiers read
// from different sources compare equal.
func New(name, version, culture, token string) ID {
	if strings.EqualFold(culture, neutralCulture) {
		culture = ""
	}
	if strings.EqualFold(token, nullToken) {
		token = ""
	}
	return ID{
		Name:           strings.TrimSpace(name),
		Version:        strings.TrimSpace(version),
		Culture:        strings.TrimSpace(culture),
		PublicKeyToken: strings.ToLower(strings.TrimSpace(token)),
	}
}

// Validate checks that the identifier can be placed in the shared store.
func (id ID) Validate() error {
	if id.Name == "" {
		return errors.Wrap(ErrInvalidComponent, "empty name")
	}
	if id.Name == "." || id.Name == ".." || strings.ContainsAny(id.Name, `\/:*?"<>|,`) {
		return errors.Wrapf(ErrInvalidComponent, "name %q contains reserved characters", id.Name)
	}
	if err := validateVersion(id.Version); err != nil {
		return err
	}
	if id.PublicKeyToken != "" {
		if b, err := hex.DecodeString(id.PublicKeyToken); err != nil || len(b) != 8 {
			return errors.Wrapf(ErrInvalidComponent, "public key token %q is not 16 hex digits", id.PublicKeyToken)
		}
	}
	if strings.ContainsAny(id.Culture, `\/:*?"<>|,_`) {
		return errors.Wrapf(ErrInvalidComponent, "culture %q contains reserved characters", id.Culture)
	}
	return nil
}

func validateVersion(v string) error {
	parts := strings.Split(v, ".")
	if v == "" || len(parts) > 4 {
		return errors.Wrapf(ErrInvalidComponent, "version %q must have one to four parts", v)
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 16); err != nil {
			return errors.Wrapf(ErrInvalidComponent, "version %q has invalid part %q", v, p)
		}
	}
	return nil
}

// String renders the identifier as an assembly display name.
func (id ID) String() string {
	culture := id.Culture
	if culture == "" {
		culture = neutralCulture
	}
	token := id.PublicKeyToken
	if token == "" {
		token = nullToken
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", id.Name, id.Version, culture, token)
}

// Parse reads an assembly display name such as
// `Foo, Version=1.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089`.
// Attributes other than the three known ones are ignored; missing ones are
// left empty.
func Parse(s string) (ID, error) {
	fields := strings.Split(s, ",")
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return ID{}, errors.Wrapf(ErrInvalidComponent, "display name %q has no name", s)
	}
	var version, culture, token string
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return ID{}, errors.Wrapf(ErrInvalidComponent, "malformed attribute %q", strings.TrimSpace(f))
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "version":
			version = v
		case "culture":
			culture = v
		case "publickeytoken":
			token = v
		}
	}
	id := New(name, version, culture, token)
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}
