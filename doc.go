// Package tudump prepares a C/C++ project for AST inspection. It forces a
// single -std= flag onto every command of a compilation database
// (compile_commands.json), writes the database back, and runs an AST-dump
// tool once per translation unit.
//
// # Pipeline
//
// [Engine.Run] works in strictly ordered phases:
//
//  1. Load: read and parse the database. A document that is not a JSON
//     array of build action objects fails with [ParseError].
//  2. Rewrite: on an in-memory copy, replace the first -std= token of each
//     command (or append one). Nothing on disk changes yet.
//  3. Prepare: create the output directory and its parents. An output
//     directory that already exists fails with [AlreadyExistsError].
//  4. Save: overwrite the database with the full rewritten array.
//  5. Dump: for each action, start `tool <file>` in the action's directory
//     with stdout redirected to <output>/<basename of file>. Every child is
//     started before any is waited for; Run returns once all have exited.
//
// The dump tool's exit status and standard error are ignored. A crashing
// tool leaves an empty or partial artifact and does not fail the run.
//
// # Usage
//
//	e := tudump.New(tudump.WithTool("ast-dump-tool"))
//	report, err := e.Run(ctx, tudump.Request{
//		Database:  "build/compile_commands.json",
//		Standard:  tudump.Cxx17,
//		OutputDir: "/tmp/ast",
//	})
//
// # Extras
//
//   - [WithTool]("builtin") dumps with an in-process tree-sitter parser
//     instead of an external executable.
//   - [WithFilter] takes a Risor expression over file, directory, command
//     and index; only matching actions are dumped.
//   - [WithManifest] records each run and its dumps in a SQLite database.
package tudump
