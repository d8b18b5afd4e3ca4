package classify

import "strings"

// Normalize canonicalizes a free-text brand or model term: lowercase,
// hyphens/underscores become spaces, repeated whitespace collapses, and the
// result is trimmed. It is idempotent and must be applied identically at
// cache-write and cache-read time so "Perkin-Elmer" and "perkin elmer"
// collide to the same key.
func Normalize(term string) string {
	term = strings.ToLower(term)
	term = strings.ReplaceAll(term, "-", " ")
	term = strings.ReplaceAll(term, "_", " ")
	return strings.Join(strings.Fields(term), " ")
}

// CacheKey builds the case-insensitive brand_model_category key used for
// the cache row and the in-flight refresh set.
func CacheKey(brand, model, category string) string {
	return Normalize(brand) + "_" + Normalize(model) + "_" + Normalize(category)
}
