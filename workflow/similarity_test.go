package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Açaí Tradicional", "acai tradicional"))
	assert.Equal(t, 0.5, Similarity("Sorvete de Chocolate", "Sorvete Chocolate Belga"))
	assert.Equal(t, 0.0, Similarity("Colher", "Tapioca"))
	assert.Equal(t, 0.0, Similarity("", "Tapioca"))
	assert.Equal(t, 0.0, Similarity("2024", "Tapioca"))
}

func TestSimilarity_SymmetricAndBounded(t *testing.T) {
	names := []string{
		"Açaí - Tradicional",
		"Açaí com Banana",
		"Sorvete Morango",
		"Morango",
		"Casquinha",
		"Pote 2L Chocolate",
		"",
	}
	for _, a := range names {
		for _, b := range names {
			ab := Similarity(a, b)
			assert.Equal(t, ab, Similarity(b, a), "similarity(%q, %q)", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
		if a != "" {
			assert.Equal(t, 1.0, Similarity(a, a), "similarity(%q, itself)", a)
		}
	}
}
