package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListOperationsProvisionOnDemand(t *testing.T) {
	// Fresh store, no tables: every read succeeds with an empty result
	// instead of surfacing the missing-table error.
	s := newTestStore(t)
	ctx := context.Background()

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	assert.Empty(t, chains)

	artists, err := s.ListArtists(ctx)
	require.NoError(t, err)
	assert.Empty(t, artists)

	inspirations, err := s.ListInspirations(ctx)
	require.NoError(t, err)
	assert.Empty(t, inspirations)
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	assert.Len(t, chains, 1, "re-provisioning must not destroy data")
}

func TestCreateChainSeedsVersionOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "bar")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 1)

	chain := chains[0]
	assert.Equal(t, "Foo", chain.Name)
	assert.Equal(t, "bar", chain.Description)
	assert.Equal(t, []string{}, chain.Tags)
	assert.Nil(t, chain.PreviewImage)

	require.NotNil(t, chain.LatestVersion)
	assert.Equal(t, 1, chain.LatestVersion.Version)
	assert.Equal(t, id, chain.LatestVersion.ChainID)

	// Canonical seed content.
	require.Len(t, chain.LatestVersion.Modules, 1)
	assert.Equal(t, "Base", chain.LatestVersion.Modules[0].Name)
	assert.True(t, chain.LatestVersion.Modules[0].IsActive)
	defaults := DefaultParams()
	assert.Equal(t, defaults.Width, chain.LatestVersion.Params.Width)
	assert.Equal(t, defaults.Sampler, chain.LatestVersion.Params.Sampler)
}

func TestCreateVersionSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)

	// Seed version is 1; sequential appends must yield 2..5 with no gaps.
	for want := 2; want <= 5; want++ {
		versionID, version, err := s.CreateVersion(ctx, id, "prompt", "", nil, GenerationParams{})
		require.NoError(t, err)
		assert.NotEmpty(t, versionID)
		assert.Equal(t, want, version)
	}

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	require.NotNil(t, chains[0].LatestVersion)
	assert.Equal(t, 5, chains[0].LatestVersion.Version)
}

func TestCreateVersionUnknownChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Provision first so the failure class is the foreign key, not the schema.
	_, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)

	_, _, err = s.CreateVersion(ctx, "no-such-chain", "p", "", nil, GenerationParams{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateVersionBumpsChainTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)

	before, err := s.ListChains(ctx)
	require.NoError(t, err)

	_, _, err = s.CreateVersion(ctx, id, "p", "", nil, GenerationParams{})
	require.NoError(t, err)

	after, err := s.ListChains(ctx)
	require.NoError(t, err)
	assert.True(t, after[0].UpdatedAt.After(before[0].UpdatedAt))
}

func TestUpdateChainMeta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "bar")
	require.NoError(t, err)
	orig, err := s.ListChains(ctx)
	require.NoError(t, err)

	t.Run("empty patch is a no-op that succeeds", func(t *testing.T) {
		require.NoError(t, s.UpdateChainMeta(ctx, id, ChainMetaPatch{}))

		chains, err := s.ListChains(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Foo", chains[0].Name)
		assert.True(t, chains[0].UpdatedAt.Equal(orig[0].UpdatedAt))
	})

	t.Run("partial patch updates fields and timestamp", func(t *testing.T) {
		name := "X"
		require.NoError(t, s.UpdateChainMeta(ctx, id, ChainMetaPatch{Name: &name}))

		chains, err := s.ListChains(ctx)
		require.NoError(t, err)
		assert.Equal(t, "X", chains[0].Name)
		assert.Equal(t, "bar", chains[0].Description, "untouched field survives")
		assert.True(t, chains[0].UpdatedAt.After(orig[0].UpdatedAt))
	})

	t.Run("preview image patch", func(t *testing.T) {
		ref := "preview.png"
		require.NoError(t, s.UpdateChainMeta(ctx, id, ChainMetaPatch{PreviewImage: &ref}))

		chains, err := s.ListChains(ctx)
		require.NoError(t, err)
		require.NotNil(t, chains[0].PreviewImage)
		assert.Equal(t, "preview.png", *chains[0].PreviewImage)
	})

	t.Run("unknown chain", func(t *testing.T) {
		name := "X"
		err := s.UpdateChainMeta(ctx, "no-such-chain", ChainMetaPatch{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteChainCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)
	_, _, err = s.CreateVersion(ctx, id, "p", "", nil, GenerationParams{})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChain(ctx, id))

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	assert.Empty(t, chains)

	var orphans int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM versions WHERE chain_id = ?", id).Scan(&orphans))
	assert.Equal(t, 0, orphans, "versions must be removed by the cascade")

	assert.ErrorIs(t, s.DeleteChain(ctx, id), ErrNotFound)
}

func TestVersionBlobsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateChain(ctx, "Foo", "")
	require.NoError(t, err)

	modules := []Module{
		{ID: "m1", Name: "Style", Content: "oil painting", IsActive: true},
		{ID: "m2", Name: "Lighting", Content: "dramatic lighting", IsActive: false},
	}
	seed := int64(0)
	params := GenerationParams{
		Width: 1024, Height: 1024, Steps: 20, Scale: 7.5,
		Seed:       &seed,
		Characters: []CharacterPrompt{{Prompt: "knight", X: 0.5, Y: 0.5}},
	}
	_, _, err = s.CreateVersion(ctx, id, "base", "neg", modules, params)
	require.NoError(t, err)

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	latest := chains[0].LatestVersion
	require.NotNil(t, latest)

	assert.Equal(t, "base", latest.BasePrompt)
	assert.Equal(t, "neg", latest.NegativePrompt)
	assert.Equal(t, modules, latest.Modules)
	require.NotNil(t, latest.Params.Seed)
	assert.Equal(t, int64(0), *latest.Params.Seed)
	require.Len(t, latest.Params.Characters, 1)
	assert.Equal(t, "knight", latest.Params.Characters[0].Prompt)
}

func TestListChainsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateChain(ctx, "First", "")
	require.NoError(t, err)
	second, err := s.CreateChain(ctx, "Second", "")
	require.NoError(t, err)

	// Touch the older chain; it should rise to the top.
	name := "First (touched)"
	require.NoError(t, s.UpdateChainMeta(ctx, first, ChainMetaPatch{Name: &name}))

	chains, err := s.ListChains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, first, chains[0].ID)
	assert.Equal(t, second, chains[1].ID)
}

func TestArtistLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertArtist(ctx, Artist{Name: "hokusai", ImageRef: "hokusai.png"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Upsert with the same id updates in place.
	_, err = s.UpsertArtist(ctx, Artist{ID: id, Name: "hokusai", ImageRef: "wave.png", Prompt: "ukiyo-e"})
	require.NoError(t, err)

	artists, err := s.ListArtists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, "wave.png", artists[0].ImageRef)
	assert.Equal(t, "ukiyo-e", artists[0].Prompt)

	require.NoError(t, s.DeleteArtist(ctx, id))
	assert.ErrorIs(t, s.DeleteArtist(ctx, id), ErrNotFound)
}

func TestInspirationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertInspiration(ctx, Inspiration{Title: "neon alley", ImageRef: "alley.png", Prompt: "neon, rain"})
	require.NoError(t, err)

	inspirations, err := s.ListInspirations(ctx)
	require.NoError(t, err)
	require.Len(t, inspirations, 1)
	assert.Equal(t, "neon alley", inspirations[0].Title)

	require.NoError(t, s.DeleteInspiration(ctx, id))

	inspirations, err = s.ListInspirations(ctx)
	require.NoError(t, err)
	assert.Empty(t, inspirations)
}
