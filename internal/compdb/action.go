package compdb

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// member is one name/value pair of a build action object, kept verbatim.
type member struct {
	name  string
	value jsontext.Value
}

// Action is one compilation database entry. Members are kept in their
// original order; only command is ever rewritten.
type Action struct {
	members []member

	command   string
	directory string
	file      string
}

// NewAction builds an action holding just the three fields tudump reads.
func NewAction(command, directory, file string) (*Action, error) {
	a := &Action{}
	for _, m := range []struct{ name, value string }{
		{"command", command},
		{"directory", directory},
		{"file", file},
	} {
		if err := a.set(m.name, m.value); err != nil {
			return nil, fmt.Errorf("compdb: %w", err)
		}
	}
	return a, nil
}

// Command returns the compiler invocation in shell syntax.
func (a *Action) Command() string { return a.command }

// Directory returns the working directory of the invocation.
func (a *Action) Directory() string { return a.directory }

// File returns the source path, absolute or relative to Directory.
func (a *Action) File() string { return a.file }

// SetCommand replaces the command member, leaving every other member as-is.
func (a *Action) SetCommand(command string) error {
	if err := a.set("command", command); err != nil {
		return fmt.Errorf("compdb: %w", err)
	}
	return nil
}

// Names returns the member names in document order.
func (a *Action) Names() []string {
	names := make([]string, len(a.members))
	for i, m := range a.members {
		names[i] = m.name
	}
	return names
}

// Raw returns the verbatim JSON value of the named member.
func (a *Action) Raw(name string) (jsontext.Value, bool) {
	for i := len(a.members) - 1; i >= 0; i-- {
		if a.members[i].name == name {
			return a.members[i].value, true
		}
	}
	return nil, false
}

// set stores value under name. Invalid UTF-8 is mangled to U+FFFD, the same
// as decoding does, and the accessors are refreshed from the stored value.
func (a *Action) set(name, value string) error {
	b, err := json.Marshal(value, jsontext.AllowInvalidUTF8(true))
	if err != nil {
		return fmt.Errorf("encode %q: %w", name, err)
	}
	raw := jsontext.Value(b)
	if err := json.Unmarshal(raw, &value, decodeOpts...); err != nil {
		return fmt.Errorf("decode %q: %w", name, err)
	}
	switch name {
	case "command":
		a.command = value
	case "directory":
		a.directory = value
	case "file":
		a.file = value
	}
	// With duplicate names the last occurrence wins, so that is the one updated.
	for i := len(a.members) - 1; i >= 0; i-- {
		if a.members[i].name == name {
			a.members[i].value = raw
			return nil
		}
	}
	a.members = append(a.members, member{name: name, value: raw})
	return nil
}

// UnmarshalJSONFrom implements json.UnmarshalerFrom.
func (a *Action) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != '{' {
		return fmt.Errorf("build action must be an object, got %v", tok.Kind())
	}

	*a = Action{}
	seen := map[string]bool{}
	for dec.PeekKind() != '}' {
		nameTok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		name := nameTok.String()
		val, err := dec.ReadValue()
		if err != nil {
			return err
		}
		val = val.Clone()
		a.members = append(a.members, member{name: name, value: val})

		switch name {
		case "command", "directory", "file":
			var s string
			if err := json.Unmarshal(val, &s, decodeOpts...); err != nil {
				return fmt.Errorf("member %q must be a string: %w", name, err)
			}
			switch name {
			case "command":
				a.command = s
			case "directory":
				a.directory = s
			case "file":
				a.file = s
			}
			seen[name] = true
		}
	}
	if _, err := dec.ReadToken(); err != nil {
		return err
	}

	for _, required := range []string{"command", "directory", "file"} {
		if !seen[required] {
			return fmt.Errorf("build action is missing %q", required)
		}
	}
	return nil
}

// MarshalJSONTo implements json.MarshalerTo.
func (a *Action) MarshalJSONTo(enc *jsontext.Encoder) error {
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	for _, m := range a.members {
		if err := enc.WriteToken(jsontext.String(m.name)); err != nil {
			return err
		}
		if err := enc.WriteValue(m.value); err != nil {
			return err
		}
	}
	return enc.WriteToken(jsontext.EndObject)
}
