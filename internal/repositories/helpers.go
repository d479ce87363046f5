package repositories

import (
	"database/sql"
	"errors"
	"sort"
)

// sortedKeys gives map keys in a stable order so generated SQL is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
