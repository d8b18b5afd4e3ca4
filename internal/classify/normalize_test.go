package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Agilent", "agilent"},
		{"hyphen to space", "Perkin-Elmer", "perkin elmer"},
		{"underscore to space", "perkin_elmer", "perkin elmer"},
		{"collapse whitespace", "perkin   elmer", "perkin elmer"},
		{"trims edges", "  HPLC 1260  ", "hplc 1260"},
		{"mixed separators", "Perkin-Elmer_Lambda  25", "perkin elmer lambda 25"},
		{"empty", "", ""},
		{"only separators", "-_-", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"Perkin-Elmer", "perkin   elmer", "AGILENT 7890B", "thermo_fisher"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing twice must not change %q", in)
	}
}

func TestNormalize_EquivalentSpellingsCollide(t *testing.T) {
	assert.Equal(t, Normalize("Perkin-Elmer"), Normalize("perkin   elmer"))
	assert.Equal(t, Normalize("7890B_GC"), Normalize("7890b-gc"))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "agilent_7890b_gc systems", CacheKey("Agilent", "7890B", "GC-Systems"))
	assert.Equal(t, CacheKey("Perkin-Elmer", "Lambda 25", ""), CacheKey("perkin elmer", "lambda   25", ""))
}
