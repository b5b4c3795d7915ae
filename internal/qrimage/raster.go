package qrimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

var levels = map[string]qrcode.RecoveryLevel{
	"L": qrcode.Low,
	"M": qrcode.Medium,
	"Q": qrcode.High,
	"H": qrcode.Highest,
}

// matrix encodes payload into modules without any quiet zone.
func matrix(payload, level string) ([][]bool, error) {
	q, err := qrcode.New(payload, levels[level])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodingFailure, err)
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

// layout places an n-module code with margin on a canvas of at least size
// pixels. Every module is scale x scale pixels; pixels left over by the
// integer scale are split around the code. A size below n+2*margin is raised
// to it so no module row or column is ever dropped.
func layout(n, margin, size int) (canvas, scale, origin int) {
	total := n + 2*margin
	canvas = max(size, total)
	scale = canvas / total
	pad := (canvas - scale*total) / 2
	return canvas, scale, pad + margin*scale
}

func rasterize(modules [][]bool, style Style) (*image.Paletted, error) {
	fg, err := parseColor(style.Foreground)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidStyle, err)
	}
	bg, err := parseColor(style.Background)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidStyle, err)
	}

	canvas, scale, origin := layout(len(modules), *style.Margin, style.Size)

	// Index 0 = background, 1 = foreground.
	img := image.NewPaletted(image.Rect(0, 0, canvas, canvas), color.Palette{bg, fg})

	for my, row := range modules {
		y0 := origin + my*scale
		for mx, dark := range row {
			if !dark {
				continue
			}
			x0 := origin + mx*scale
			for y := y0; y < y0+scale; y++ {
				offset := y*img.Stride + x0
				for x := 0; x < scale; x++ {
					img.Pix[offset+x] = 1
				}
			}
		}
	}
	return img, nil
}

func encode(img *image.Paletted, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatGIF:
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 2})
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodingFailure, err)
	}
	return buf.Bytes(), nil
}
