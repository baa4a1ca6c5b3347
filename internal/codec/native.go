package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imgcrunch/internal/config"
)

// NativeBackend is the pure-Go fallback: decodes JPEG/PNG/GIF/BMP/TIFF/WebP
// via the stdlib and x/image codecs and encodes JPEG only. HEIC/AVIF sources
// and targets need the vips backend.
type NativeBackend struct{}

func NewNativeBackend() *NativeBackend { return &NativeBackend{} }

func (b *NativeBackend) Name() string { return "native" }

func (b *NativeBackend) Supports(f config.Format) bool {
	return f == config.FormatJPEG
}

func (b *NativeBackend) Render(req Request) (*Rendered, error) {
	f, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.SourcePath, err)
	}

	// Flatten onto white. Drawing with Over normalizes every source mode
	// (alpha, palette, gray, CMYK) to plain RGB in one pass.
	bounds := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)

	out := &Rendered{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
	}

	img := flat
	if NeedsResize(out.OriginalWidth, out.OriginalHeight, req.MaxSize) {
		w, h := FitDimensions(out.OriginalWidth, out.OriginalHeight, req.MaxSize)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = dst
		out.Width, out.Height = w, h
		out.Resized = true
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: req.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
