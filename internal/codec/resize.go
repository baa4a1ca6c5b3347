package codec

// NeedsResize reports whether an image exceeds the longest-side bound.
// A bound of 0 means convert-only: never resize.
func NeedsResize(width, height, maxSize int) bool {
	if maxSize == 0 {
		return false
	}
	return width > maxSize || height > maxSize
}

// FitDimensions scales (width, height) so the longer side equals target,
// preserving aspect ratio. The shorter side is truncated to an integer.
func FitDimensions(width, height, target int) (int, int) {
	if width >= height {
		return target, int(float64(height) * (float64(target) / float64(width)))
	}
	return int(float64(width) * (float64(target) / float64(height))), target
}
