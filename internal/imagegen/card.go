package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontBold    *opentype.Font
	fontRegular *opentype.Font
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		fontBold, fontErr = opentype.Parse(gobold.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", fontErr)
			return
		}
		fontRegular, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", fontErr)
		}
	})
}

// cardFaces are per render; an opentype.Face is not safe for concurrent use.
type cardFaces struct {
	large   font.Face
	regular font.Face
}

func newCardFaces() (*cardFaces, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fontErr
	}
	large, err := opentype.NewFace(fontBold, &opentype.FaceOptions{
		Size:    120,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create large face: %w", err)
	}
	regular, err := opentype.NewFace(fontRegular, &opentype.FaceOptions{
		Size:    36,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create regular face: %w", err)
	}
	return &cardFaces{large: large, regular: regular}, nil
}

// CardData is what the harvest share card shows.
type CardData struct {
	ScenarioName string
	YieldPercent float64
	Headline     string
	Irrigation   int
	Fertilizer   int
	WaterUsage   int
}

// Standard Open Graph dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// RenderHarvestCard draws the share card. When banner is a decodable image it
// is center-cropped as the background; otherwise a plain gradient is used.
func RenderHarvestCard(banner []byte, data CardData) ([]byte, error) {
	faces, err := newCardFaces()
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	drewBanner := false
	if len(banner) > 0 {
		if src, _, err := image.Decode(bytes.NewReader(banner)); err == nil {
			coverCrop(dst, src)
			drawGradientOverlay(dst)
			drewBanner = true
		}
	}
	if !drewBanner {
		drawBackground(dst)
	}

	drawTextOverlay(dst, data, faces)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode harvest card: %w", err)
	}
	return buf.Bytes(), nil
}

// coverCrop scales src to cover dst (nearest neighbour) and centers it.
func coverCrop(dst *image.RGBA, src image.Image) {
	srcBounds := src.Bounds()
	srcW, srcH := srcBounds.Dx(), srcBounds.Dy()
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	scale := float64(w) / float64(srcW)
	if sy := float64(h) / float64(srcH); sy > scale {
		scale = sy
	}
	offsetX := (int(float64(srcW)*scale) - w) / 2
	offsetY := (int(float64(srcH)*scale) - h) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcX := int(float64(x+offsetX) / scale)
			srcY := int(float64(y+offsetY) / scale)
			if srcX >= 0 && srcX < srcW && srcY >= 0 && srcY < srcH {
				dst.Set(x, y, src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY))
			}
		}
	}
}

// drawGradientOverlay darkens the bottom of the image for text readability.
func drawGradientOverlay(img *image.RGBA) {
	bounds := img.Bounds()
	gradientHeight := 340

	for y := bounds.Max.Y - gradientHeight; y < bounds.Max.Y; y++ {
		progress := float64(y-(bounds.Max.Y-gradientHeight)) / float64(gradientHeight)
		alpha := progress * progress * 0.85

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			orig := img.RGBAAt(x, y)
			orig.R = uint8(float64(orig.R) * (1 - alpha))
			orig.G = uint8(float64(orig.G) * (1 - alpha))
			orig.B = uint8(float64(orig.B) * (1 - alpha))
			img.SetRGBA(x, y, orig)
		}
	}
}

// drawBackground fills with a dark green gradient.
func drawBackground(img *image.RGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		progress := float64(y) / float64(bounds.Dy())
		c := color.RGBA{uint8(18 + progress*10), uint8(40 + progress*20), uint8(28 + progress*8), 255}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawTextOverlay(img *image.RGBA, data CardData, faces *cardFaces) {
	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}
	gold := color.RGBA{240, 200, 90, 255}

	drawText(img, fmt.Sprintf("%.0f%%", data.YieldPercent), 60, CardHeight-230, gold, faces.large)
	if data.Headline != "" {
		drawText(img, data.Headline, 60, CardHeight-170, white, faces.regular)
	}
	drawText(img, fmt.Sprintf("%s  |  irrigation %d  |  fertilizer %d  |  %d L water",
		data.ScenarioName, data.Irrigation, data.Fertilizer, data.WaterUsage), 60, CardHeight-110, lightGray, faces.regular)
	drawText(img, "Harvest Horizon", 60, CardHeight-40, lightGray, faces.regular)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// CardCache keeps rendered cards in memory for a while.
type CardCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	cards map[string]cachedCard
}

type cachedCard struct {
	data      []byte
	expiresAt time.Time
}

func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{ttl: ttl, cards: make(map[string]cachedCard)}
}

func (c *CardCache) Get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	card, ok := c.cards[id]
	if !ok || time.Now().After(card.expiresAt) {
		return nil, false
	}
	return card.data, true
}

// Set stores a card and drops expired ones.
func (c *CardCache) Set(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, v := range c.cards {
		if now.After(v.expiresAt) {
			delete(c.cards, k)
		}
	}
	c.cards[id] = cachedCard{data: data, expiresAt: now.Add(c.ttl)}
}
