package vectorsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float64{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOppositeVectorsIsZero(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{-1, 0}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityOrthogonalVectorsIsHalf(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.5, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityMismatchedLengthsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1}))
}

func TestCosineSimilarityZeroVectorIsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestErrDimensionMismatchMessage(t *testing.T) {
	err := &ErrDimensionMismatch{Expected: 1536, Got: 768}
	assert.Contains(t, err.Error(), "1536")
	assert.Contains(t, err.Error(), "768")
}
