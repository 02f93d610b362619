package domain

// PersistedIdentifiers keeps the entries the operator intends the browser to
// retain. Only an explicit persisted=false opts an identifier out; a missing
// flag counts as persisted. Every identifier list exposed to a caller or
// written to a cookie goes through this filter.
func PersistedIdentifiers(ids []Identifier) []Identifier {
	out := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		if id.Persisted != nil && !*id.Persisted {
			continue
		}
		out = append(out, id)
	}
	return out
}
