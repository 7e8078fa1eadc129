package store

import (
	"time"

	"github.com/google/uuid"
)

type Chain struct {
	ID            string    `json:"id"` // UUID
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	PreviewImage  *string   `json:"previewImage"` // Nullable
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LatestVersion *Version  `json:"latestVersion"` // Derived, nil when the chain has no versions
}

// Version is an immutable snapshot of a chain's prompt configuration.
// Version numbers per chain are exactly 1..k with no gaps.
type Version struct {
	ID             string           `json:"id"` // UUID
	ChainID        string           `json:"chainId"`
	Version        int              `json:"version"`
	BasePrompt     string           `json:"basePrompt"`
	NegativePrompt string           `json:"negativePrompt"`
	Modules        []Module         `json:"modules"`
	Params         GenerationParams `json:"params"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Module is a named, toggleable prompt fragment within a version.
type Module struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	IsActive bool   `json:"isActive"`
}

// CharacterPrompt places one character's prompt at an (x, y) position on the
// canvas, both expressed as 0..1 fractions.
type CharacterPrompt struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
}

// GenerationParams are the structured generation settings stored with each
// version and accepted live on /api/generate. Pointer fields distinguish
// "absent" from an explicit zero value; see the compiler for the defaults.
type GenerationParams struct {
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	Steps         int               `json:"steps,omitempty"`
	Scale         float64           `json:"scale,omitempty"`
	Sampler       string            `json:"sampler,omitempty"`
	NoiseSchedule string            `json:"noiseSchedule,omitempty"`
	Seed          *int64            `json:"seed,omitempty"`
	QualityToggle *bool             `json:"qualityToggle,omitempty"`
	UCPreset      *int              `json:"ucPreset,omitempty"`
	CFGRescale    float64           `json:"cfgRescale,omitempty"`
	Variety       bool              `json:"variety,omitempty"`
	Characters    []CharacterPrompt `json:"characters,omitempty"`
	UseCoords     *bool             `json:"useCoords,omitempty"`
}

type Artist struct {
	ID       string `json:"id"` // UUID
	Name     string `json:"name"`
	ImageRef string `json:"imageRef"`
	Prompt   string `json:"prompt,omitempty"`
}

type Inspiration struct {
	ID       string `json:"id"` // UUID
	Title    string `json:"title"`
	ImageRef string `json:"imageRef"`
	Prompt   string `json:"prompt,omitempty"`
}

// DefaultModules is the canonical module set seeded into version 1 of every
// new chain.
func DefaultModules() []Module {
	return []Module{
		{ID: uuid.NewString(), Name: "Base", Content: "", IsActive: true},
	}
}

// DefaultParams is the canonical parameter set seeded into version 1 of every
// new chain.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Width:         832,
		Height:        1216,
		Steps:         28,
		Scale:         5.0,
		Sampler:       "k_euler_ancestral",
		NoiseSchedule: "karras",
	}
}
