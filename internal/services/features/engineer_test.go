package features

import (
	"testing"

	"PriceCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestComputeHistoryThreshold(t *testing.T) {
	assert.Empty(t, Compute(nil))
	assert.Empty(t, Compute(linearBars(19, 10, 1)))

	rows := Compute(linearBars(20, 10, 1))
	require.Len(t, rows, 1)
	assert.Equal(t, baseDate.AddDate(0, 0, 19), rows[0].Date)

	assert.Len(t, Compute(linearBars(100, 10, 1)), 100-WarmUp)
}

func TestComputeValues(t *testing.T) {
	bars := linearBars(25, 1, 1) // closes 1..25
	rows := Compute(bars)
	require.Len(t, rows, 6)

	r := rows[0] // bar 19, close 20
	assert.Equal(t, 20.0, r.Close)
	assert.Equal(t, 19.5, r.Open)
	assert.Equal(t, float64(1019), r.Volume)
	assert.InDelta(t, 1.0/19.0, r.DailyReturn, 1e-12)
	assert.InDelta(t, 18.0, r.MA5, 1e-9)
	assert.InDelta(t, 15.5, r.MA10, 1e-9)
	assert.InDelta(t, 10.5, r.MA20, 1e-9)

	rets := []float64{1.0 / 15, 1.0 / 16, 1.0 / 17, 1.0 / 18, 1.0 / 19}
	assert.InDelta(t, stat.StdDev(rets, nil), r.Volatility5, 1e-12)

	last := rows[len(rows)-1]
	assert.Equal(t, 25.0, last.Close)
	assert.InDelta(t, 23.0, last.MA5, 1e-9)
}

func TestComputeVolatilityIsSampleStdDev(t *testing.T) {
	bars := linearBars(20, 100, 0)
	rows := Compute(bars)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].DailyReturn)
	assert.Equal(t, 0.0, rows[0].Volatility5)
}

func TestComputeIsCausal(t *testing.T) {
	bars := wavyBars(120)
	full := Compute(bars)

	for _, k := range []int{20, 37, 64, 119} {
		prefix := Compute(bars[:k])
		require.Len(t, prefix, k-WarmUp)
		for i := range prefix {
			assert.Equal(t, full[i], prefix[i], "row %d differs with prefix %d", i, k)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	bars := wavyBars(60)
	assert.Equal(t, Compute(bars), Compute(bars))
}

func TestVectorOrder(t *testing.T) {
	rows := Compute(linearBars(21, 1, 1))
	v := rows[1].Vector()
	assert.Equal(t, rows[1].Close, v[models.ColClose])
	assert.Equal(t, rows[1].Volatility5, v[models.ColVolatility5])
	assert.Equal(t, rows[1].MA20, v[models.ColMA20])
}
