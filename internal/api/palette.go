package api

import "github.com/lox/harvesthorizon/internal/scoring"

// Palette is the page colour scheme, chosen from the soil regime of the
// conditions being shown.
type Palette struct {
	Background string
	Card       string
	CardBorder string
	Text       string
	TextMuted  string
	Accent     string
	AccentAlt  string
}

var DefaultPalette = Palette{
	Background: "#f4f1e8",
	Card:       "#ffffff",
	CardBorder: "#ddd6c4",
	Text:       "#2b2a24",
	TextMuted:  "#77705e",
	Accent:     "#4a7c3a",
	AccentAlt:  "#c27a1e",
}

var palettes = map[scoring.Regime]Palette{
	scoring.RegimeDry: {
		Background: "#f6ead8", // parched straw
		Card:       "#fffaf1",
		CardBorder: "#e6cfa8",
		Text:       "#3a2a18",
		TextMuted:  "#8a7152",
		Accent:     "#c0641c",
		AccentAlt:  "#a33b1a",
	},
	scoring.RegimeOptimal: DefaultPalette,
	scoring.RegimeWet: {
		Background: "#e6eef0", // overcast
		Card:       "#f9fcfd",
		CardBorder: "#c2d3d8",
		Text:       "#1e2d33",
		TextMuted:  "#5f757d",
		Accent:     "#2f6f8f",
		AccentAlt:  "#3d8a6a",
	},
}

// PaletteFor returns the palette for a regime, or DefaultPalette.
func PaletteFor(r scoring.Regime) Palette {
	if p, ok := palettes[r]; ok {
		return p
	}
	return DefaultPalette
}
