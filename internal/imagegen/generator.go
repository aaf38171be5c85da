package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// Generator renders scenario banners with OpenAI's image API.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator reads OPENAI_API_KEY from the environment.
func NewGenerator(opts ...option.RequestOption) (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewGeneratorWithKey(apiKey, opts...), nil
}

func NewGeneratorWithKey(apiKey string, opts ...option.RequestOption) *Generator {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Generator{
		client: client,
		model:  "gpt-image-1",
	}
}

// Generate returns PNG bytes for a banner showing the farm under the given conditions.
func (g *Generator) Generate(ctx context.Context, b Banner) ([]byte, error) {
	log.Printf("imagegen: generating banner %s", b.Key())

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:        g.model,
		Prompt:       b.Prompt(),
		Size:         openai.ImageGenerateParamsSize1536x1024,
		Quality:      openai.ImageGenerateParamsQualityLow,
		OutputFormat: openai.ImageGenerateParamsOutputFormatPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no image data returned")
	}

	imageData := resp.Data[0].B64JSON
	if imageData == "" {
		return nil, errors.New("empty image data returned")
	}
	imageBytes, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}

	log.Printf("imagegen: generated banner %s (%d bytes)", b.Key(), len(imageBytes))
	return imageBytes, nil
}
