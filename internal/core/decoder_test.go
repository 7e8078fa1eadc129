package core

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	name string
	data []byte
}

func buildArchive(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var imageBytes = []byte("\x89PNG fake image payload")

func TestDecodeMetadataSeedWins(t *testing.T) {
	archive := buildArchive(t,
		archiveEntry{name: "image_0.png", data: imageBytes},
		archiveEntry{name: "image_0.json", data: []byte(`{"seed": 42, "steps": 28}`)},
	)
	result, err := Decode(archive, int64Ptr(7))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Seed)
	assert.Equal(t, imageBytes, result.Image)
}

func TestDecodeFallsBackToSentSeed(t *testing.T) {
	archive := buildArchive(t, archiveEntry{name: "image_0.png", data: imageBytes})
	result, err := Decode(archive, int64Ptr(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Seed)
}

func TestDecodeDefaultsToZeroSeed(t *testing.T) {
	archive := buildArchive(t, archiveEntry{name: "image_0.png", data: imageBytes})
	result, err := Decode(archive, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Seed)
}

func TestDecodeToleratesMalformedMetadata(t *testing.T) {
	tests := []struct {
		name string
		meta []byte
	}{
		{name: "not JSON", meta: []byte("{{{not json")},
		{name: "no seed field", meta: []byte(`{"steps": 28}`)},
		{name: "non-numeric seed", meta: []byte(`{"seed": "forty-two"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := buildArchive(t,
				archiveEntry{name: "image_0.png", data: imageBytes},
				archiveEntry{name: "image_0.json", data: tt.meta},
			)
			result, err := Decode(archive, int64Ptr(7))
			require.NoError(t, err)
			assert.Equal(t, int64(7), result.Seed)
			assert.Equal(t, imageBytes, result.Image)
		})
	}
}

func TestDecodeEmptyArchive(t *testing.T) {
	archive := buildArchive(t)
	_, err := Decode(archive, nil)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestDecodeGarbageBytes(t *testing.T) {
	_, err := Decode([]byte("this is not a zip archive"), nil)
	assert.Error(t, err)
}
