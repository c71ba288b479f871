package store

import (
	"strconv"
	"strings"

	"circus-pes/models"
)

// query accumulates fixed SQL fragments and the positional arguments they
// reference. Values never enter the SQL text.
type query struct {
	sb   strings.Builder
	args []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) write(parts ...string) {
	for _, p := range parts {
		q.sb.WriteString(p)
	}
}

func (q *query) String() string {
	return q.sb.String()
}

// where joins the conditions that apply with AND.
func (q *query) where(conds []string) {
	if len(conds) == 0 {
		return
	}
	q.write("\nWHERE ", strings.Join(conds, "\n\tAND "))
}

func (q *query) paginate(offset, limit int) {
	if limit <= 0 {
		return
	}
	q.write("\nLIMIT ", q.arg(limit))
	if offset > 0 {
		q.write(" OFFSET ", q.arg(offset))
	}
}

// visibilityCond renders the public flag policy for the table alias, or ""
// when the mode does not restrict rows.
func (q *query) visibilityCond(alias string, v models.Visibility) string {
	switch v.Mode {
	case models.VisibilityStrict:
		return alias + ".public = " + q.arg(v.Public)
	case models.VisibilityOwnerInclusive:
		if v.ViewerID == "" {
			return alias + ".public = " + q.arg(v.Public)
		}
		return "(" + alias + ".public = " + q.arg(v.Public) + " OR " + alias + ".user_id = " + q.arg(v.ViewerID) + ")"
	}
	return ""
}
