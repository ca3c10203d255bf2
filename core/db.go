package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// SanitizeOrderings keeps the orderings whose field is a key of `allowed` and maps it to
// the matching column. Unknown fields are dropped: they must never reach an ORDER BY clause.
func SanitizeOrderings(ords []DBOrdering, allowed map[string]string) []DBOrdering {
	if len(ords) == 0 {
		return nil
	}
	clean := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if col, ok := allowed[strings.ToLower(ord.Field)]; ok {
			clean = append(clean, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return clean
}

// OrderByClause joins orderings into an ORDER BY expression, or returns `fallback` when empty.
func OrderByClause(ords []DBOrdering, fallback string) string {
	if len(ords) == 0 {
		return fallback
	}
	parts := make([]string, 0, len(ords))
	for _, ord := range ords {
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ", ")
}
