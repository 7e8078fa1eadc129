package core

import (
	"github.com/chainworks/chain-studio/internal/store"
)

// RandomSeed is the sentinel meaning "let the provider pick". It is the only
// reserved value: 0 is a legitimate explicit seed and is sent literally.
const RandomSeed = -1

const (
	defaultModel  = "nai-diffusion-4-5-full"
	defaultAction = "generate"

	defaultWidth         = 832
	defaultHeight        = 1216
	defaultSteps         = 28
	defaultScale         = 5.0
	defaultSampler       = "k_euler_ancestral"
	defaultNoiseSchedule = "karras"

	// Canonical quality tags appended unless qualityToggle is explicitly off.
	qualityTagSuffix = ", no text, best quality, very aesthetic, absurdres"

	// skip_cfg_above_sigma value the variety toggle maps to.
	varietyThreshold = 19.0

	ucPresetNone = 4
)

// ucPresets are the canned negative-prompt fragments selected by ucPreset
// index. Index 4 (none) applies no prefix.
var ucPresets = [4]string{
	"blurry, lowres, error, film grain, scan artifacts, worst quality, bad quality, jpeg artifacts, very displeasing, chromatic aberration, multiple views, logo, too many watermarks",
	"blurry, lowres, error, worst quality, bad quality, jpeg artifacts, very displeasing",
	"blurry, lowres, error, worst quality, bad quality, jpeg artifacts, very displeasing, white blank page, blank page",
	"lowres, jpeg artifacts, worst quality, watermark, blurry, very displeasing",
}

// Center is a character anchor point, fractions of the canvas.
type Center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CharacterPayload is the legacy flat character entry.
type CharacterPayload struct {
	Prompt string `json:"prompt"`
	UC     string `json:"uc"`
	Center Center `json:"center"`
}

type CharCaption struct {
	CharCaption string   `json:"char_caption"`
	Centers     []Center `json:"centers"`
}

type Caption struct {
	BaseCaption  string        `json:"base_caption"`
	CharCaptions []CharCaption `json:"char_captions"`
}

type StructuredPrompt struct {
	Caption   Caption `json:"caption"`
	UseCoords bool    `json:"use_coords"`
	UseOrder  bool    `json:"use_order"`
}

// PayloadParameters is the provider's parameter block. It carries both the
// legacy flat prompt fields and the structured caption objects; the provider
// accepts both for compatibility.
type PayloadParameters struct {
	Width                       int                `json:"width"`
	Height                      int                `json:"height"`
	Scale                       float64            `json:"scale"`
	Sampler                     string             `json:"sampler"`
	Steps                       int                `json:"steps"`
	NSamples                    int                `json:"n_samples"`
	Seed                        *int64             `json:"seed,omitempty"`
	NegativePrompt              string             `json:"negative_prompt"`
	CharacterPrompts            []CharacterPayload `json:"characterPrompts"`
	StructuredPrompt            StructuredPrompt   `json:"v4_prompt"`
	StructuredNegative          StructuredPrompt   `json:"v4_negative_prompt"`
	SkipCFGAboveSigma           *float64           `json:"skip_cfg_above_sigma,omitempty"`
	CFGRescale                  float64            `json:"cfg_rescale"`
	NoiseSchedule               string             `json:"noise_schedule"`
	QualityToggle               bool               `json:"qualityToggle"`
	UCPreset                    int                `json:"ucPreset"`
	SM                          bool               `json:"sm"`
	SMDyn                       bool               `json:"sm_dyn"`
	DynamicThresholding         bool               `json:"dynamic_thresholding"`
	ControlnetStrength          float64            `json:"controlnet_strength"`
	Legacy                      bool               `json:"legacy"`
	AddOriginalImage            bool               `json:"add_original_image"`
	LegacyV3Extend              bool               `json:"legacy_v3_extend"`
	DeliberateEulerAncestralBug bool               `json:"deliberate_euler_ancestral_bug"`
	PreferBrownian              bool               `json:"prefer_brownian"`
}

// GeneratePayload is the provider's documented request schema.
type GeneratePayload struct {
	Input      string            `json:"input"`
	Model      string            `json:"model"`
	Action     string            `json:"action"`
	Parameters PayloadParameters `json:"parameters"`
}

// Compile maps a prompt pair plus generation parameters into the provider's
// wire format. Pure function, no I/O.
func Compile(prompt, negative string, p store.GenerationParams) GeneratePayload {
	input := prompt
	if p.QualityToggle == nil || *p.QualityToggle {
		input += qualityTagSuffix
	}

	preset := 0
	if p.UCPreset != nil {
		preset = *p.UCPreset
	}
	uc := negative
	if preset != ucPresetNone && preset >= 0 && preset < len(ucPresets) {
		if uc == "" {
			uc = ucPresets[preset]
		} else {
			uc = ucPresets[preset] + ", " + uc
		}
	}

	characters := make([]CharacterPayload, 0, len(p.Characters))
	positive := make([]CharCaption, 0, len(p.Characters))
	negatives := make([]CharCaption, 0, len(p.Characters))
	for _, ch := range p.Characters {
		center := Center{X: ch.X, Y: ch.Y}
		characters = append(characters, CharacterPayload{Prompt: ch.Prompt, UC: ch.NegativePrompt, Center: center})
		positive = append(positive, CharCaption{CharCaption: ch.Prompt, Centers: []Center{center}})
		negatives = append(negatives, CharCaption{CharCaption: ch.NegativePrompt, Centers: []Center{center}})
	}

	useCoords := len(p.Characters) > 0
	if p.UseCoords != nil {
		useCoords = *p.UseCoords
	}

	var seed *int64
	if p.Seed != nil && *p.Seed != RandomSeed {
		v := *p.Seed
		seed = &v
	}

	var skipCFG *float64
	if p.Variety {
		v := float64(varietyThreshold)
		skipCFG = &v
	}

	params := PayloadParameters{
		Width:              valueOr(p.Width, defaultWidth),
		Height:             valueOr(p.Height, defaultHeight),
		Scale:              valueOrF(p.Scale, defaultScale),
		Sampler:            valueOrS(p.Sampler, defaultSampler),
		Steps:              valueOr(p.Steps, defaultSteps),
		NSamples:           1,
		Seed:               seed,
		NegativePrompt:     uc,
		CharacterPrompts:   characters,
		StructuredPrompt:   StructuredPrompt{Caption: Caption{BaseCaption: input, CharCaptions: positive}, UseCoords: useCoords, UseOrder: true},
		StructuredNegative: StructuredPrompt{Caption: Caption{BaseCaption: uc, CharCaptions: negatives}, UseCoords: useCoords, UseOrder: true},
		SkipCFGAboveSigma:  skipCFG,
		CFGRescale:         p.CFGRescale,
		NoiseSchedule:      valueOrS(p.NoiseSchedule, defaultNoiseSchedule),
		QualityToggle:      p.QualityToggle == nil || *p.QualityToggle,
		UCPreset:           preset,
		AddOriginalImage:   true,
		PreferBrownian:     true,
	}

	return GeneratePayload{
		Input:      input,
		Model:      defaultModel,
		Action:     defaultAction,
		Parameters: params,
	}
}

func valueOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func valueOrF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func valueOrS(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
