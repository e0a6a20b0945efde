package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMergesDuplicateLines(t *testing.T) {
	got, err := normalize([]LineRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 5, 2: 1}, got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, err := normalize([]LineRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	again := make([]LineRequest, 0, len(first))
	for id, qty := range first {
		again = append(again, LineRequest{ProductID: id, Quantity: qty})
	}
	second, err := normalize(again)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeRejectsEmptyInput(t *testing.T) {
	_, err := normalize(nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = normalize([]LineRequest{})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestNormalizeRejectsNonPositiveQuantities(t *testing.T) {
	cases := map[string][]LineRequest{
		"zero":              {{ProductID: 1, Quantity: 0}},
		"negative":          {{ProductID: 1, Quantity: -5}},
		"cancels in merge":  {{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: -2}},
		"negative in merge": {{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: -3}},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := normalize(lines)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		})
	}
}
