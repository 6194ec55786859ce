package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrConflict is returned when a conditional write finds the row in an unexpected state.
var ErrConflict = errors.New("row changed concurrently")

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
