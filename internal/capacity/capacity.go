// Package capacity parses the portal's capacity column.
//
// The column is either a plain integer ("30") or a primary capacity followed
// by the sub-limit reserved for continuing students ("30 (10)").
package capacity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// Kind tags which format a capacity was written in.
type Kind int

const (
	Plain Kind = iota + 1
	WithSubLimit
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case WithSubLimit:
		return "with_sub_limit"
	default:
		return "unknown"
	}
}

// Capacity is a parsed capacity value.
type Capacity struct {
	Kind     Kind
	Primary  int
	SubLimit int
}

var (
	plainPattern    = regexp.MustCompile(`^(\d+)$`)
	subLimitPattern = regexp.MustCompile(`^(\d+)\s*\(\s*(\d+)\s*\)$`)
)

// Parse reads text in either supported format. Anything else is an
// ErrParse.
func Parse(text string) (Capacity, error) {
	trimmed := strings.TrimSpace(text)
	if m := plainPattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Capacity{}, parseError(text, err)
		}
		return Capacity{Kind: Plain, Primary: n}, nil
	}
	if m := subLimitPattern.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Capacity{}, parseError(text, err)
		}
		sub, err := strconv.Atoi(m[2])
		if err != nil {
			return Capacity{}, parseError(text, err)
		}
		return Capacity{Kind: WithSubLimit, Primary: n, SubLimit: sub}, nil
	}
	return Capacity{}, parseError(text, nil)
}

// Effective returns the ceiling that governs fullness. The sub-limit only
// applies to old-student mode; plain capacities ignore the mode.
func (c Capacity) Effective(oldStudentMode bool) int {
	if c.Kind == WithSubLimit && oldStudentMode {
		return c.SubLimit
	}
	return c.Primary
}

// String renders the capacity back in portal format.
func (c Capacity) String() string {
	if c.Kind == WithSubLimit {
		return fmt.Sprintf("%d (%d)", c.Primary, c.SubLimit)
	}
	return strconv.Itoa(c.Primary)
}

// Effective parses text and returns its effective capacity.
func Effective(text string, oldStudentMode bool) (int, error) {
	c, err := Parse(text)
	if err != nil {
		return 0, err
	}
	return c.Effective(oldStudentMode), nil
}

// IsFull reports whether enrolled reaches the effective capacity of text.
func IsFull(enrolled int, text string, oldStudentMode bool) (bool, error) {
	limit, err := Effective(text, oldStudentMode)
	if err != nil {
		return false, err
	}
	return enrolled >= limit, nil
}

func parseError(text string, cause error) error {
	msg := fmt.Sprintf("unrecognized capacity %q", text)
	if cause == nil {
		cause = fmt.Errorf("capacity %q matches neither N nor N (M)", text)
	}
	return appErrors.WrapAs(appErrors.ErrParse, cause, msg)
}
