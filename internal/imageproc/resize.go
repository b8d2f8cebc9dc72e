package imageproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// TargetSize returns the output dimensions for a w x h source. It never
// returns dimensions larger than the source.
func TargetSize(w, h int, p Preset) (int, int) {
	if p.Fit == FitCropSquare {
		side := min(w, h)
		if p.MaxWidth < side {
			side = p.MaxWidth
		}
		return side, side
	}

	if w <= p.MaxWidth {
		return w, h
	}
	nh := int(math.Round(float64(p.MaxWidth) * float64(h) / float64(w)))
	if nh < 1 {
		nh = 1
	}
	return p.MaxWidth, nh
}

// Resize applies the preset's fit policy with a Lanczos filter.
func Resize(img image.Image, p Preset) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tw, th := TargetSize(w, h, p)

	if p.Fit == FitCropSquare {
		if tw == min(w, h) {
			return imaging.CropCenter(img, tw, th)
		}
		return imaging.Fill(img, tw, th, imaging.Center, imaging.Lanczos)
	}

	if tw == w && th == h {
		return img
	}
	return imaging.Resize(img, tw, th, imaging.Lanczos)
}
