package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "gold", "gold", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "gold", "", 0.0},
		{"single edit", "gold", "golf", 0.75},
		{"completely different", "abcd", "wxyz", 0.0},
		{"longer near match", "goldcoins", "goldcoin", 1.0 - 1.0/9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarityRatio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, similarityRatio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestSimilarityThreshold(t *testing.T) {
	// A one-rune slip in a ten-rune name still resolves; the same slip in a
	// four-rune name does not.
	assert.GreaterOrEqual(t, similarityRatio("goldcoinsx", "goldcoins1"), nameSimilarityThreshold)
	assert.Less(t, similarityRatio("gold", "golf"), nameSimilarityThreshold)
}
