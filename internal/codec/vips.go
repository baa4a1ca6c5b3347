package codec

import (
	"fmt"
	"sync"

	vips "github.com/davidbyttow/govips/v2/vips"

	"imgcrunch/internal/config"
)

// VipsBackend renders through libvips. It handles every supported source
// format and all three target formats, subject to what the linked libvips
// was compiled with (HEIF/AVIF support is a build option).
type VipsBackend struct{}

var vipsStartup sync.Once

// NewVipsBackend starts libvips on first use. The registry's Close calls
// Close, which shuts libvips down.
func NewVipsBackend() *VipsBackend {
	vipsStartup.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
	})
	return &VipsBackend{}
}

func (b *VipsBackend) Name() string { return "vips" }

func (b *VipsBackend) Close() { vips.Shutdown() }

func (b *VipsBackend) Supports(f config.Format) bool {
	switch f {
	case config.FormatJPEG:
		return vips.IsTypeSupported(vips.ImageTypeJPEG)
	case config.FormatHEIC:
		return vips.IsTypeSupported(vips.ImageTypeHEIF)
	case config.FormatAVIF:
		return vips.IsTypeSupported(vips.ImageTypeAVIF)
	}
	return false
}

func (b *VipsBackend) Render(req Request) (*Rendered, error) {
	ref, err := vips.NewImageFromFile(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.SourcePath, err)
	}
	defer ref.Close()

	out := &Rendered{
		OriginalWidth:   ref.Width(),
		OriginalHeight:  ref.Height(),
		MetadataCarried: true,
	}

	if ref.HasAlpha() {
		if err := ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("flatten: %w", err)
		}
	}
	// Grayscale included: every non-sRGB source widens to plain RGB so both
	// backends emit the same channel layout.
	if ref.Interpretation() != vips.InterpretationSRGB {
		if err := ref.ToColorSpace(vips.InterpretationSRGB); err != nil {
			return nil, fmt.Errorf("convert colorspace: %w", err)
		}
	}

	if NeedsResize(out.OriginalWidth, out.OriginalHeight, req.MaxSize) {
		w, h := FitDimensions(out.OriginalWidth, out.OriginalHeight, req.MaxSize)
		hScale := float64(w) / float64(out.OriginalWidth)
		vScale := float64(h) / float64(out.OriginalHeight)
		if err := ref.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
		out.Resized = true
	}
	out.Width, out.Height = ref.Width(), ref.Height()

	switch req.Format {
	case config.FormatJPEG:
		ep := vips.NewJpegExportParams()
		ep.Quality = req.Quality
		ep.Interlace = true
		ep.OptimizeCoding = true
		ep.StripMetadata = false
		out.Data, _, err = ref.ExportJpeg(ep)
	case config.FormatHEIC:
		ep := vips.NewHeifExportParams()
		ep.Quality = req.Quality
		out.Data, _, err = ref.ExportHeif(ep)
	case config.FormatAVIF:
		ep := vips.NewAvifExportParams()
		ep.Quality = req.Quality
		out.Data, _, err = ref.ExportAvif(ep)
	default:
		return nil, fmt.Errorf("unsupported target format %q", req.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Format, err)
	}
	return out, nil
}
