package tudump

import (
	"github.com/jward/tudump/internal/compdb"
	"github.com/jward/tudump/internal/outdir"
	"github.com/jward/tudump/internal/stdflag"
)

// Public aliases for the internal types that appear in the Engine API.

type Standard = stdflag.Standard
type Action = compdb.Action
type Database = compdb.Database
type ParseError = compdb.ParseError
type AlreadyExistsError = outdir.AlreadyExistsError

// The recognized standards.
const (
	Cxx98 = stdflag.Cxx98
	Cxx03 = stdflag.Cxx03
	Cxx11 = stdflag.Cxx11
	Cxx14 = stdflag.Cxx14
	Cxx17 = stdflag.Cxx17
	Cxx20 = stdflag.Cxx20
)
