// Package stdflag rewrites compiler command lines so they carry exactly one
// -std= language-standard flag.
package stdflag

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Prefix marks a language-standard token on a compiler command line.
const Prefix = "-std="

// Standard is one of the C++ language standards tudump can inject.
type Standard string

const (
	Cxx98 Standard = "c++98"
	Cxx03 Standard = "c++03"
	Cxx11 Standard = "c++11"
	Cxx14 Standard = "c++14"
	Cxx17 Standard = "c++17"
	Cxx20 Standard = "c++20"
)

var standards = []Standard{Cxx98, Cxx03, Cxx11, Cxx14, Cxx17, Cxx20}

// Standards returns the recognized standards in ascending order.
func Standards() []Standard {
	out := make([]Standard, len(standards))
	copy(out, standards)
	return out
}

// ParseStandard validates s against the recognized standards.
func ParseStandard(s string) (Standard, error) {
	for _, std := range standards {
		if string(std) == s {
			return std, nil
		}
	}
	return "", fmt.Errorf("invalid standard %q (choose from %s)", s, choices())
}

func choices() string {
	names := make([]string, len(standards))
	for i, std := range standards {
		names[i] = string(std)
	}
	return strings.Join(names, ", ")
}

// Flag returns the command-line token selecting std.
func (s Standard) Flag() string {
	return Prefix + string(s)
}

// String implements pflag.Value.
func (s *Standard) String() string {
	return string(*s)
}

// Set implements pflag.Value; unknown standards are rejected at parse time.
func (s *Standard) Set(v string) error {
	std, err := ParseStandard(v)
	if err != nil {
		return err
	}
	*s = std
	return nil
}

// Type implements pflag.Value.
func (s *Standard) Type() string {
	return "standard"
}

// Tokens splits a command line using POSIX shell quoting rules. Input the
// shell grammar rejects (an unterminated quote or a trailing backslash) is
// split on whitespace instead, so every string yields a token list.
func Tokens(command string) []string {
	args, err := shellquote.Split(command)
	if err != nil {
		return strings.Fields(command)
	}
	return args
}

// Rewrite returns command with its first -std= token replaced by std, or
// with std appended when no such token exists. Any later -std= tokens are
// dropped so the result carries exactly one. The result is re-quoted so
// that splitting it again yields the rewritten token list.
func Rewrite(command string, std Standard) string {
	args := Tokens(command)

	out := make([]string, 0, len(args)+1)
	found := false
	for _, arg := range args {
		if !strings.HasPrefix(arg, Prefix) {
			out = append(out, arg)
			continue
		}
		if !found {
			out = append(out, std.Flag())
			found = true
		}
	}

	if !found {
		out = append(out, std.Flag())
	}
	return shellquote.Join(out...)
}
