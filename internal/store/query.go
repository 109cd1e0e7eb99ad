package store

import (
	"fmt"
	"strings"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type scanner interface {
	Scan(dest ...any) error
}

// conditions accumulates WHERE clauses with positional arguments.
// Each expression uses %[1]d for its own placeholder number.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(expr string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(expr, len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends OFFSET/LIMIT placeholders and returns the clause.
func (c *conditions) page(offset, limit int) (string, []any) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args := append(append([]any{}, c.args...), offset, limit)
	return fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(c.args)+1, len(c.args)+2), args
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(search)) + "%"
}
