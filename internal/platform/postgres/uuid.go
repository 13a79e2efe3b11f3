package postgres

import "github.com/google/uuid"

// uuidStrings converts a slice of UUIDs to their string form for use with
// ANY($n::uuid[]) predicates, which keeps parameter encoding on types the
// database/sql driver handles natively.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
