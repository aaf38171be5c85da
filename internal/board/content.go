package board

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

type TileType string

const (
	TileField TileType = "field"
	TileEvent TileType = "event"
	TileShop  TileType = "shop"
)

type Tile struct {
	Name string   `yaml:"name" json:"name" validate:"required"`
	Type TileType `yaml:"type" json:"type" validate:"oneof=field event shop"`
}

type Effect struct {
	SustainabilityChange int `yaml:"sustainability_change" json:"sustainability_change"`
}

type Solution struct {
	Title  string `yaml:"title" json:"title" validate:"required"`
	Cost   int    `yaml:"cost" json:"cost" validate:"min=0"`
	Effect Effect `yaml:"effect" json:"effect"`
}

type Card struct {
	ID          string     `yaml:"id" json:"id" validate:"required"`
	Title       string     `yaml:"title" json:"title" validate:"required"`
	Description string     `yaml:"description" json:"description"`
	Solutions   []Solution `yaml:"solutions" json:"solutions" validate:"min=1,dive"`
}

type Asset struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description"`
	Cost        int    `yaml:"cost" json:"cost" validate:"min=0"`
	IncomeBoost int    `yaml:"income_boost" json:"income_boost" validate:"min=0"`
}

// Content is the static part of the game: board layout, problem cards and the shop.
type Content struct {
	Tiles  []Tile  `yaml:"tiles" json:"tiles" validate:"min=1,dive"`
	Cards  []Card  `yaml:"cards" json:"cards" validate:"dive"`
	Assets []Asset `yaml:"assets" json:"assets" validate:"dive"`
}

var validate = validator.New()

// DefaultContent returns the built-in board.
func DefaultContent() (*Content, error) {
	return ParseContent(defaultContent)
}

// LoadContent reads board content from a YAML file.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board content: %w", err)
	}
	return ParseContent(data)
}

func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse board content: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate board content: %w", err)
	}

	hasEvent, hasShop := false, false
	for _, t := range c.Tiles {
		hasEvent = hasEvent || t.Type == TileEvent
		hasShop = hasShop || t.Type == TileShop
	}
	if hasEvent && len(c.Cards) == 0 {
		return nil, fmt.Errorf("validate board content: event tiles need at least one card")
	}
	if hasShop && len(c.Assets) == 0 {
		return nil, fmt.Errorf("validate board content: shop tiles need at least one asset")
	}
	return &c, nil
}

func (c *Content) Asset(id string) (Asset, bool) {
	for _, a := range c.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}
