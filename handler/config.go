package handler

import (
	"errors"
	"fmt"
	"strings"
)

// Unit is the unit a handler measures chunk sizes in.
type Unit string

const (
	// UnitToken counts GPT-4o tiktoken tokens.
	UnitToken Unit = "token"
	// UnitRune counts Unicode code points.
	UnitRune Unit = "rune"
)

// ErrUnknownUnit is returned for a Unit other than UnitToken or UnitRune.
var ErrUnknownUnit = errors.New("unknown chunk unit")

// ParseUnit converts a configuration value into a Unit. An empty value yields UnitToken.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UnitToken, nil
	case UnitToken, UnitRune:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

const defaultSemanticTokenThreshold = 8000
