package forest

import (
	"encoding/json"
	"fmt"

	"PriceCast/internal/domain/models"
)

const codecVersion = 1

type envelope struct {
	Version int     `json:"version"`
	Forest  *Forest `json:"forest"`
}

// Codec serializes forests as versioned JSON.
type Codec struct{}

func NewCodec() *Codec { return &Codec{} }

func (Codec) Encode(r models.Regressor) ([]byte, error) {
	f, ok := r.(*Forest)
	if !ok {
		return nil, fmt.Errorf("forest codec: unsupported regressor %T", r)
	}
	return json.Marshal(envelope{Version: codecVersion, Forest: f})
}

func (Codec) Decode(data []byte) (models.Regressor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("forest codec: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("forest codec: unsupported version %d", env.Version)
	}
	if env.Forest == nil || len(env.Forest.Trees) == 0 {
		return nil, fmt.Errorf("forest codec: empty forest")
	}
	if err := env.Forest.validate(); err != nil {
		return nil, fmt.Errorf("forest codec: %w", err)
	}
	return env.Forest, nil
}

func (f *Forest) validate() error {
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature == leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children always follow their parent in build order
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad child index", ti, ni)
			}
		}
	}
	return nil
}
