package datastore

import (
	"fmt"
	"regexp"
	"strings"
)

var writeKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|attach|detach|pragma|vacuum|reindex|copy|call|lock)\b`)

// CheckReadOnly normalises a planner-supplied statement and rejects anything that is not a
// single SELECT or WITH query. Quoted literals and identifiers are exempt from the keyword
// and separator checks. The backends add their own read-only enforcement on top.
func CheckReadOnly(query string) (string, error) {
	exec, inspect, err := scanStatement(query)
	if err != nil {
		return "", err
	}
	exec, inspect = trimStatement(exec), trimStatement(inspect)
	if inspect == "" {
		return "", fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	if strings.Contains(inspect, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	first := strings.ToLower(strings.Fields(inspect)[0])
	if first != "select" && first != "with" {
		return "", fmt.Errorf("%w: statement starts with %q", ErrNotReadOnly, first)
	}
	if kw := writeKeyword.FindString(inspect); kw != "" {
		return "", fmt.Errorf("%w: %s is not permitted", ErrNotReadOnly, strings.ToUpper(kw))
	}
	return exec, nil
}

// scanStatement walks query once. exec is the statement with comments removed; inspect is
// the same text with the contents of every quoted literal or identifier emptied.
func scanStatement(query string) (exec, inspect string, err error) {
	var e, in strings.Builder
	for i := 0; i < len(query); {
		switch c := query[i]; {
		case strings.HasPrefix(query[i:], "--"):
			if end := strings.IndexByte(query[i:], '\n'); end >= 0 {
				i += end
			} else {
				i = len(query)
			}
			e.WriteByte(' ')
			in.WriteByte(' ')
		case strings.HasPrefix(query[i:], "/*"):
			if end := strings.Index(query[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(query)
			}
			e.WriteByte(' ')
			in.WriteByte(' ')
		case c == '\'' || c == '"':
			end := quoteEnd(query, i)
			if end < 0 {
				return "", "", fmt.Errorf("%w: unterminated quote", ErrNotReadOnly)
			}
			e.WriteString(query[i:end])
			in.WriteByte(c)
			in.WriteByte(c)
			i = end
		default:
			e.WriteByte(c)
			in.WriteByte(c)
			i++
		}
	}
	return e.String(), in.String(), nil
}

// quoteEnd returns the index just past the quote opened at query[start], or -1. A doubled
// quote character is an escape.
func quoteEnd(query string, start int) int {
	q := query[start]
	for i := start + 1; i < len(query); i++ {
		if query[i] != q {
			continue
		}
		if i+1 < len(query) && query[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return -1
}

func trimStatement(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "; \t\r\n"))
}
