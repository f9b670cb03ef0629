package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// add appends cond, replacing each "?" with the next placeholder.
func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause with its args.
func (w *where) page(req shared.PageRequest) (string, []any) {
	req = req.Normalize()
	n := len(w.args)
	args := append(append([]any{}, w.args...), req.Limit, req.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

// count runs SELECT count(*) for the conditions in w.
func count(ctx context.Context, q Querier, from string, w *where) (int, error) {
	var n int
	if err := q.QueryRow(ctx, "SELECT count(*) FROM "+from+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", from, err)
	}
	return n, nil
}

// likePattern escapes LIKE wildcards in s and wraps it in %...%.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// tsPrefixQuery turns free text into a prefix-matching tsquery: every word
// must match the start of a document token.
func tsPrefixQuery(text string) string {
	words := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			switch r {
			case '&', '|', '!', '(', ')', ':', '*', '\'', '\\', '<', '>':
				return -1
			}
			return r
		}, w)
		if w != "" {
			terms = append(terms, "'"+w+"':*")
		}
	}
	return strings.Join(terms, " & ")
}
