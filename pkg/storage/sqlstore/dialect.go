package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Dialect captures the SQL differences between the supported drivers
type Dialect struct {
	Driver string
	// ForUpdate is appended to row-locking selects
	ForUpdate string
	// OrderColumn yields creation order
	OrderColumn string
	// SeqColumn is the column definition providing creation order, if any
	SeqColumn string
	numbered  bool
}

// DialectFor returns the dialect of a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Dialect{
			Driver:      DriverPostgres,
			ForUpdate:   " FOR UPDATE",
			OrderColumn: "seq",
			SeqColumn:   "seq BIGSERIAL,",
			numbered:    true,
		}, nil
	case DriverSQLite:
		return Dialect{
			Driver:      DriverSQLite,
			OrderColumn: "rowid",
		}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders into the driver's bind syntax
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
