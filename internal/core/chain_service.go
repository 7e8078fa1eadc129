package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/chainworks/chain-studio/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")

// ChainService fronts the store for chain, version, artist and inspiration
// operations, validating inputs before they reach persistence.
type ChainService struct {
	store *store.SQLiteStore
}

func NewChainService(s *store.SQLiteStore) *ChainService {
	return &ChainService{store: s}
}

func (s *ChainService) ListChains(ctx context.Context) ([]store.Chain, error) {
	return s.store.ListChains(ctx)
}

func (s *ChainService) CreateChain(ctx context.Context, name, description string) (string, error) {
	if name == "" {
		return "", ErrInvalidInput
	}
	id, err := s.store.CreateChain(ctx, name, description)
	if err != nil {
		return "", err
	}
	log.Info().Str("chain_id", id).Str("name", name).Msg("chain created")
	return id, nil
}

func (s *ChainService) UpdateChainMeta(ctx context.Context, id string, patch store.ChainMetaPatch) error {
	if id == "" {
		return ErrInvalidInput
	}
	return s.store.UpdateChainMeta(ctx, id, patch)
}

func (s *ChainService) DeleteChain(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.store.DeleteChain(ctx, id); err != nil {
		return err
	}
	log.Info().Str("chain_id", id).Msg("chain deleted")
	return nil
}

func (s *ChainService) CreateVersion(ctx context.Context, chainID, basePrompt, negativePrompt string, modules []store.Module, params store.GenerationParams) (string, int, error) {
	if chainID == "" {
		return "", 0, ErrInvalidInput
	}
	id, version, err := s.store.CreateVersion(ctx, chainID, basePrompt, negativePrompt, modules, params)
	if err != nil {
		return "", 0, err
	}
	log.Info().Str("chain_id", chainID).Int("version", version).Msg("version created")
	return id, version, nil
}

func (s *ChainService) ListArtists(ctx context.Context) ([]store.Artist, error) {
	return s.store.ListArtists(ctx)
}

func (s *ChainService) SaveArtist(ctx context.Context, artist store.Artist) (string, error) {
	if artist.Name == "" {
		return "", ErrInvalidInput
	}
	return s.store.UpsertArtist(ctx, artist)
}

func (s *ChainService) DeleteArtist(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	return s.store.DeleteArtist(ctx, id)
}

func (s *ChainService) ListInspirations(ctx context.Context) ([]store.Inspiration, error) {
	return s.store.ListInspirations(ctx)
}

func (s *ChainService) SaveInspiration(ctx context.Context, insp store.Inspiration) (string, error) {
	if insp.Title == "" {
		return "", ErrInvalidInput
	}
	return s.store.UpsertInspiration(ctx, insp)
}

func (s *ChainService) DeleteInspiration(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	return s.store.DeleteInspiration(ctx, id)
}
