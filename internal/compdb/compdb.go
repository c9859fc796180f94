// Package compdb loads, rewrites and saves JSON compilation databases
// (compile_commands.json).
package compdb

import (
	"bytes"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"github.com/jward/tudump/internal/stdflag"
)

// Database is the ordered list of build actions in a compilation database.
type Database []*Action

// ParseError reports a compilation database that is not a JSON array of
// build action objects.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("compdb: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var decodeOpts = []json.Options{
	jsontext.AllowDuplicateNames(true),
	jsontext.AllowInvalidUTF8(true),
}

// Parse decodes data as a compilation database. path is only used to label
// errors.
func Parse(path string, data []byte) (Database, error) {
	if k := jsontext.Value(bytes.TrimSpace(data)).Kind(); k != '[' {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("top-level value must be an array, got %v", k)}
	}

	var db Database
	if err := json.Unmarshal(data, &db, decodeOpts...); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	for i, a := range db {
		if a == nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("entry %d is null", i)}
		}
	}
	return db, nil
}

// Load reads and decodes the compilation database at path. Callers that
// also need the raw bytes, such as for Fingerprint, read them and use Parse.
func Load(fsys afero.Fs, path string) (Database, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("compdb: read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Encode renders db as an indented JSON array with a trailing newline.
func Encode(db Database) ([]byte, error) {
	if db == nil {
		db = Database{}
	}
	data, err := json.Marshal(db,
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
		jsontext.WithIndent("  "),
	)
	if err != nil {
		return nil, fmt.Errorf("compdb: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Save overwrites path with the full, pretty-printed database.
func Save(fsys afero.Fs, path string, db Database) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("compdb: write %s: %w", path, err)
	}
	return nil
}

// Rewrite forces std onto every action's command. The receiver is mutated
// in place; callers save it afterwards as one unit.
func (db Database) Rewrite(std stdflag.Standard) error {
	for i, a := range db {
		if err := a.SetCommand(stdflag.Rewrite(a.Command(), std)); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of db, so a rewrite can be staged without
// touching the loaded value.
func (db Database) Clone() Database {
	out := make(Database, len(db))
	for i, a := range db {
		c := &Action{
			members:   make([]member, len(a.members)),
			command:   a.command,
			directory: a.directory,
			file:      a.file,
		}
		for j, m := range a.members {
			c.members[j] = member{name: m.name, value: m.value.Clone()}
		}
		out[i] = c
	}
	return out
}

// Fingerprint hashes a serialized database; equal bytes give equal values.
func Fingerprint(data []byte) uint64 {
	return xxh3.Hash(data)
}
