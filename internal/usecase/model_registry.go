package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
)

const artifactVersion = 1

// storedArtifact is the blob layout. The regressor payload must be JSON.
type storedArtifact struct {
	Version   int                   `json:"version"`
	Artifact  *models.ModelArtifact `json:"artifact"`
	Regressor json.RawMessage       `json:"regressor"`
}

// ModelRegistry persists one artifact per symbol. Keys are used verbatim.
type ModelRegistry struct {
	store domrepo.BlobStore
	codec domsvc.RegressorCodec

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewModelRegistry creates a new ModelRegistry over store.
func NewModelRegistry(store domrepo.BlobStore, codec domsvc.RegressorCodec) *ModelRegistry {
	return &ModelRegistry{store: store, codec: codec, locks: make(map[string]*sync.Mutex)}
}

func (r *ModelRegistry) lockFor(symbol string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.locks[symbol] = l
	}
	return l
}

// Save replaces any artifact stored under a.Symbol.
func (r *ModelRegistry) Save(ctx context.Context, a *models.ModelArtifact) error {
	if a == nil || a.Symbol == "" {
		return errs.InvalidInput("artifact symbol is required")
	}
	if a.Regressor == nil {
		return errs.InvalidInput("artifact for %q has no regressor", a.Symbol)
	}
	reg, err := r.codec.Encode(a.Regressor)
	if err != nil {
		return fmt.Errorf("encode regressor: %w", err)
	}
	blob, err := json.Marshal(storedArtifact{Version: artifactVersion, Artifact: a, Regressor: reg})
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	l := r.lockFor(a.Symbol)
	l.Lock()
	defer l.Unlock()
	if err := r.store.Put(ctx, a.Symbol, blob); err != nil {
		return fmt.Errorf("store artifact %s: %w", a.Symbol, err)
	}
	return nil
}

// Load returns the artifact for symbol or a ModelNotFound error.
func (r *ModelRegistry) Load(ctx context.Context, symbol string) (*models.ModelArtifact, error) {
	if symbol == "" {
		return nil, errs.InvalidInput("symbol is required")
	}
	blob, err := r.store.Get(ctx, symbol)
	if errors.Is(err, domrepo.ErrBlobNotFound) {
		return nil, errs.ModelNotFound(symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", symbol, err)
	}

	var sa storedArtifact
	if err := json.Unmarshal(blob, &sa); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", symbol, err)
	}
	if sa.Version != artifactVersion || sa.Artifact == nil {
		return nil, fmt.Errorf("decode artifact %s: unsupported layout version %d", symbol, sa.Version)
	}
	reg, err := r.codec.Decode(sa.Regressor)
	if err != nil {
		return nil, fmt.Errorf("decode regressor %s: %w", symbol, err)
	}
	sa.Artifact.Regressor = reg
	return sa.Artifact, nil
}

// List returns every symbol with a stored artifact, sorted.
func (r *ModelRegistry) List(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}
