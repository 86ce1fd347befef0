package passkit

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// stripW and stripH match the wallet strip-image point size at 1x.
const (
	stripW = 375
	stripH = 123
)

// ProgressRenderer draws the default strip background: a coffee-brown band
// filled proportionally to the progress value. Deployments with branded
// artwork replace it through the Library's renderer hook.
type ProgressRenderer struct{}

func (ProgressRenderer) Render(ctx context.Context, progress int) ([]byte, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	base := color.NRGBA{R: 74, G: 44, B: 23, A: 255}
	fill := color.NRGBA{R: 222, G: 184, B: 135, A: 255}
	filledTo := stripW * progress / 100

	img := image.NewNRGBA(image.Rect(0, 0, stripW, stripH))
	for y := 0; y < stripH; y++ {
		for x := 0; x < stripW; x++ {
			if x < filledTo && y >= stripH-18 {
				img.SetNRGBA(x, y, fill)
			} else {
				img.SetNRGBA(x, y, base)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("passkit: encode strip: %w", err)
	}
	return buf.Bytes(), nil
}
