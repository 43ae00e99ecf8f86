// Package dsn classifies a database connection string into the driver it
// names: a URL-scheme parse first, falling back to a small set of
// textual heuristics.
package dsn

import (
	"net/url"
	"strings"
)

// Kind is the classified database family a DSN resolves to.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindMySQL    Kind = "mysql"
	KindUnknown  Kind = "unknown"
)

var libpqKeys = map[string]bool{
	"user":             true,
	"password":         true,
	"host":             true,
	"port":             true,
	"dbname":           true,
	"application_name": true,
	"sslmode":          true,
	"options":          true,
}

// Classify determines which database family a DSN belongs to.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)

	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "postgres", "postgresql":
			return KindPostgres
		case "mysql", "mariadb", "mysqlx":
			return KindMySQL
		case "sqlite":
			return KindSQLite
		case "file":
			return KindSQLite
		default:
			return fallbackDetect(s)
		}
	}

	return fallbackDetect(s)
}

func fallbackDetect(s string) Kind {
	lower := strings.ToLower(s)

	if lower == "sqlite::memory:" || strings.HasPrefix(lower, "file::memory:") {
		return KindSQLite
	}

	looksLikePath := strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/") ||
		(strings.Contains(s, `\`) && len(s) > 1 && s[1] == ':')

	if strings.HasSuffix(lower, ".db") ||
		strings.HasSuffix(lower, ".sqlite") ||
		strings.HasSuffix(lower, ".sqlite3") ||
		looksLikePath {
		return KindSQLite
	}

	if seemsLikeLibpqKeywords(s) {
		return KindPostgres
	}

	if strings.Contains(lower, "@tcp(") && strings.Contains(lower, ")/") {
		return KindMySQL
	}
	if strings.HasPrefix(lower, "mariadb://") ||
		strings.HasPrefix(lower, "mysql://") ||
		strings.HasPrefix(lower, "mysqlx://") {
		return KindMySQL
	}

	return KindUnknown
}

// seemsLikeLibpqKeywords does light detection of space-separated
// key=value tokens, preferring a recognized libpq key but accepting any
// key=value shape as a weaker signal.
func seemsLikeLibpqKeywords(s string) bool {
	hasEqToken := false
	for _, tok := range strings.Fields(s) {
		k, _, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		hasEqToken = true
		if libpqKeys[strings.ToLower(k)] {
			return true
		}
	}
	return hasEqToken
}
