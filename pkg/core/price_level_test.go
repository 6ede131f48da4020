package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceLevelQueueAppend(t *testing.T) {
	q := NewPriceLevelQueue(dec("10.5"))
	assert.True(t, q.IsEmpty())
	assert.Equal(t, int64(0), q.Front())

	require.NoError(t, q.Append(5))
	require.NoError(t, q.Append(7))
	assert.ErrorIs(t, q.Append(0), ErrInvalidQuantity)
	assert.ErrorIs(t, q.Append(-3), ErrInvalidQuantity)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(12), q.Total())
	assert.Equal(t, int64(5), q.Front())
	assert.Equal(t, []int64{5, 7}, q.Quantities())
	assert.Equal(t, dec("10.5"), q.Price())
}

func TestPriceLevelQueueFill(t *testing.T) {
	tests := []struct {
		name        string
		resting     []int64
		fill        int64
		wantMatched int64
		wantLeft    []int64
	}{
		{"partial front", []int64{5, 7}, 3, 3, []int64{2, 7}},
		{"exact front", []int64{5, 7}, 5, 5, []int64{7}},
		{"more than front", []int64{5, 7}, 6, 5, []int64{7}},
		{"zero", []int64{5}, 0, 0, []int64{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewPriceLevelQueue(dec("1"))
			for _, qty := range tt.resting {
				require.NoError(t, q.Append(qty))
			}

			assert.Equal(t, tt.wantMatched, q.Fill(tt.fill))
			assert.Equal(t, tt.wantLeft, q.Quantities())

			var total int64
			for _, qty := range tt.wantLeft {
				total += qty
			}
			assert.Equal(t, total, q.Total())
		})
	}
}

func TestPriceLevelQueueDrain(t *testing.T) {
	q := NewPriceLevelQueue(dec("1"))
	require.NoError(t, q.Append(2))

	assert.Equal(t, int64(2), q.Fill(10))
	assert.True(t, q.IsEmpty())
	assert.Equal(t, int64(0), q.Fill(1))
	assert.Equal(t, int64(0), q.Total())
}

func TestPriceLevelQueueString(t *testing.T) {
	q := NewPriceLevelQueue(dec("10"))
	require.NoError(t, q.Append(5))
	require.NoError(t, q.Append(7))
	assert.Equal(t, dec("10").String()+" -> 5 7", q.String())
}
