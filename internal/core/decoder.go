package core

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoImage is returned when the provider's archive contains no entries.
var ErrNoImage = errors.New("no image in generation response")

// DecodedImage is the result of one generation call: the opaque image bytes
// and the seed that actually produced them.
type DecodedImage struct {
	Image []byte
	Seed  int64
}

// Decode unpacks the provider's zip archive. The first entry is the image
// payload. The resolved seed comes from a .json metadata entry when one
// parses, else from the seed sent in the request, else 0 ("provider-chosen,
// not recoverable"). A malformed metadata entry is tolerated and falls
// through to the next source.
func Decode(archive []byte, sentSeed *int64) (DecodedImage, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return DecodedImage{}, fmt.Errorf("unreadable generation archive: %w", err)
	}
	if len(zr.File) == 0 {
		return DecodedImage{}, ErrNoImage
	}

	image, err := readEntry(zr.File[0])
	if err != nil {
		return DecodedImage{}, fmt.Errorf("failed to read image entry %q: %w", zr.File[0].Name, err)
	}

	var seed int64
	if sentSeed != nil {
		seed = *sentSeed
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		if metaSeed, ok := parseMetadataSeed(f); ok {
			seed = metaSeed
			break
		}
	}

	return DecodedImage{Image: image, Seed: seed}, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func parseMetadataSeed(f *zip.File) (int64, bool) {
	raw, err := readEntry(f)
	if err != nil {
		log.Warn().Err(err).Str("entry", f.Name).Msg("unreadable metadata entry, ignoring")
		return 0, false
	}
	var meta struct {
		Seed *int64 `json:"seed"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Seed == nil {
		log.Warn().Str("entry", f.Name).Msg("metadata entry has no usable seed, ignoring")
		return 0, false
	}
	return *meta.Seed, true
}
