// Package forest implements a seeded random-forest regressor built from CART trees.
//
// Each tree is grown on a bootstrap sample and considers every feature at every
// split. Per-tree seeds are drawn in order from the master seed before any tree is
// built, so the fitted forest is identical whatever the worker count.
package forest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultEstimators = 100
	DefaultSeed       = 42
)

// Forest averages the predictions of its trees.
type Forest struct {
	NumFeatures int    `json:"n_features"`
	Trees       []Tree `json:"trees"`
}

func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Config controls forest fitting.
type Config struct {
	Estimators      int
	Seed            uint64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Workers         int
}

type Option func(*Config)

func WithEstimators(n int) Option     { return func(c *Config) { c.Estimators = n } }
func WithSeed(seed uint64) Option     { return func(c *Config) { c.Seed = seed } }
func WithMaxDepth(d int) Option       { return func(c *Config) { c.MaxDepth = d } }
func WithMinSamplesLeaf(n int) Option { return func(c *Config) { c.MinSamplesLeaf = n } }
func WithWorkers(n int) Option        { return func(c *Config) { c.Workers = n } }

func defaultConfig() Config {
	return Config{
		Estimators:      DefaultEstimators,
		Seed:            DefaultSeed,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Workers:         runtime.GOMAXPROCS(0),
	}
}

// Trainer fits forests. It is safe for concurrent use.
type Trainer struct {
	cfg Config
}

func NewTrainer(opts ...Option) *Trainer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Estimators <= 0 {
		cfg.Estimators = DefaultEstimators
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	return &Trainer{cfg: cfg}
}

func (t *Trainer) Config() Config { return t.cfg }

// Fit grows the forest on X (one flattened sample per row) and y.
func (t *Trainer) Fit(ctx context.Context, X [][]float64, y []float64) (models.Regressor, error) {
	if len(X) == 0 {
		return nil, errs.InsufficientData("no training samples")
	}
	if len(X) != len(y) {
		return nil, errs.InvalidInput("got %d samples but %d targets", len(X), len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, errs.InvalidInput("sample %d has %d features, want %d", i, len(row), width)
		}
	}

	master := rand.New(rand.NewPCG(t.cfg.Seed, t.cfg.Seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, t.cfg.Estimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	params := treeParams{
		maxDepth:        t.cfg.MaxDepth,
		minSamplesSplit: t.cfg.MinSamplesSplit,
		minSamplesLeaf:  t.cfg.MinSamplesLeaf,
	}
	trees := make([]Tree, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			trees[i] = buildTree(X, y, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	return &Forest{NumFeatures: width, Trees: trees}, nil
}
