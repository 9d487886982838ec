package postgres

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/anaqa-user-service/internal/domain/repository"
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-index rejection on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// userWhere renders the WHERE clause for a filter. Placeholders start at $1.
func userWhere(f repository.UserFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Role != "" {
		conds = append(conds, "role = "+next(string(f.Role)))
	}
	if f.IsEmailVerified != nil {
		conds = append(conds, "is_email_verified = "+next(*f.IsEmailVerified))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + escapeLike(s) + "%")
		conds = append(conds, "(name ILIKE "+p+" OR email ILIKE "+p+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
