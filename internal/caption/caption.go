// Package caption renders meme-style captions: a white bar above the
// image with centered black text. Animated GIFs are captioned frame by
// frame.
package caption

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Render captions the image in data and returns the encoded result and
// its file extension ("png" or "gif").
func Render(data []byte, text string) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	if format == "gif" {
		out, err := renderGIF(data, text)
		return out, "gif", err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	captioned, err := Still(src, text)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, captioned); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "png", nil
}

// Still returns a copy of src with a caption bar drawn above it.
func Still(src image.Image, text string) (*image.RGBA, error) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	fontSize := width / 10
	if fontSize < 16 {
		fontSize = 16
	}
	if fontSize > 64 {
		fontSize = 64
	}
	barHeight := fontSize * 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height+barHeight))
	draw.Draw(dst, image.Rect(0, 0, width, barHeight), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(0, barHeight, width, height+barHeight), src, bounds.Min, draw.Src)

	if err := drawCentered(dst, text, width, barHeight, fontSize); err != nil {
		return nil, err
	}
	return dst, nil
}

func renderGIF(data []byte, text string) ([]byte, error) {
	src, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode GIF: %w", err)
	}
	if len(src.Image) == 0 {
		return nil, fmt.Errorf("GIF has no frames")
	}

	width := src.Config.Width
	height := src.Config.Height
	if width == 0 || height == 0 {
		b := src.Image[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}

	// Flatten frames onto an accumulator so partial frames and
	// disposal modes come out right, then caption each snapshot.
	accum := image.NewRGBA(image.Rect(0, 0, width, height))
	out := &gif.GIF{LoopCount: src.LoopCount}

	for i, frame := range src.Image {
		draw.Draw(accum, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		captioned, err := Still(accum, text)
		if err != nil {
			return nil, err
		}

		pal := framePalette(frame.Palette)
		paletted := image.NewPaletted(captioned.Bounds(), pal)
		draw.FloydSteinberg.Draw(paletted, captioned.Bounds(), captioned, image.Point{})

		out.Image = append(out.Image, paletted)
		if i < len(src.Delay) {
			out.Delay = append(out.Delay, src.Delay[i])
		} else {
			out.Delay = append(out.Delay, 10)
		}
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}

	out.Config = image.Config{
		ColorModel: out.Image[0].Palette,
		Width:      out.Image[0].Bounds().Dx(),
		Height:     out.Image[0].Bounds().Dy(),
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode GIF: %w", err)
	}
	return buf.Bytes(), nil
}

// framePalette ensures the caption colors are representable.
func framePalette(pal color.Palette) color.Palette {
	out := make(color.Palette, len(pal), len(pal)+2)
	copy(out, pal)
	if len(out) <= 254 {
		out = append(out, color.White, color.Black)
	}
	return out
}

func drawCentered(dst *image.RGBA, text string, width, barHeight, fontSize int) error {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to build font face: %w", err)
	}
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
	}
	textWidth := drawer.MeasureString(text)
	x := (fixed.I(width) - textWidth) / 2
	if x < 0 {
		x = 0
	}
	metrics := face.Metrics()
	y := fixed.I(barHeight/2) + metrics.Ascent/2

	drawer.Dot = fixed.Point26_6{X: x, Y: y}
	drawer.DrawString(text)
	return nil
}
