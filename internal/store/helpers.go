package store

import (
	"database/sql"
	"strconv"
)

// hashText stores fingerprints as hex text; SQLite integers are
// signed and would mangle the upper half of the uint64 range.
func hashText(h uint64) string {
	return strconv.FormatUint(h, 16)
}

func parseHash(s sql.NullString) uint64 {
	if !s.Valid {
		return 0
	}
	h, _ := strconv.ParseUint(s.String, 16, 64)
	return h
}
