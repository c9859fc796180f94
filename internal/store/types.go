package store

import "time"

// Run is one tudump invocation.
type Run struct {
	ID           int64
	DatabasePath string
	Standard     string
	OutputDir    string
	Tool         string
	Filter       string
	HashBefore   uint64 // fingerprint of the database as loaded
	HashAfter    uint64 // fingerprint of the database as saved
	ActionCount  int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Dump is one dump launched by a run. The tool's exit status is not kept.
type Dump struct {
	ID        int64
	RunID     int64
	Ordinal   int
	File      string
	Directory string
	Command   string
	Artifact  string
}
