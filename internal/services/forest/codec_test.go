package forest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegressor struct{}

func (stubRegressor) Predict([]float64) float64 { return 0 }

func TestCodecPreservesPredictions(t *testing.T) {
	X, y := dataset(120, 5, 11)
	r, err := NewTrainer(WithEstimators(12)).Fit(context.Background(), X, y)
	require.NoError(t, err)

	c := NewCodec()
	data, err := c.Encode(r)
	require.NoError(t, err)
	back, err := c.Decode(data)
	require.NoError(t, err)

	for _, x := range X[:20] {
		assert.Equal(t, r.Predict(x), back.Predict(x))
	}
}

func TestCodecRejects(t *testing.T) {
	c := NewCodec()
	_, err := c.Encode(stubRegressor{})
	assert.Error(t, err)

	for name, blob := range map[string]string{
		"garbage":      `{`,
		"version":      `{"version":9,"forest":{"n_features":1,"trees":[{"nodes":[{"f":-1,"v":1}]}]}}`,
		"empty":        `{"version":1,"forest":{"n_features":1,"trees":[]}}`,
		"bad feature":  `{"version":1,"forest":{"n_features":1,"trees":[{"nodes":[{"f":3,"l":1,"r":2,"v":0},{"f":-1,"v":1},{"f":-1,"v":2}]}]}}`,
		"bad children": `{"version":1,"forest":{"n_features":1,"trees":[{"nodes":[{"f":0,"l":0,"r":5,"v":0}]}]}}`,
	} {
		_, err := c.Decode([]byte(blob))
		assert.Error(t, err, name)
	}
}
