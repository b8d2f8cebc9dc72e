package imageproc

import "fmt"

// Fit selects how a preset maps source dimensions to target dimensions.
type Fit int

const (
	// FitScaleToWidth bounds the width and keeps the aspect ratio.
	FitScaleToWidth Fit = iota
	// FitCropSquare centre-crops to a square bounded by MaxWidth.
	FitCropSquare
)

func (f Fit) String() string {
	switch f {
	case FitScaleToWidth:
		return "scale-to-width"
	case FitCropSquare:
		return "crop-square"
	default:
		return fmt.Sprintf("fit(%d)", int(f))
	}
}

// Preset names a derivative recipe.
type Preset struct {
	Name           string
	Fit            Fit
	MaxWidth       int
	BudgetBytes    int64
	InitialQuality int
	FloorQuality   int
	Step           int
}

var (
	Thumbnail = Preset{
		Name:           "thumbnail",
		Fit:            FitScaleToWidth,
		MaxWidth:       800,
		BudgetBytes:    200 * 1024,
		InitialQuality: 80,
		FloorQuality:   50,
		Step:           5,
	}

	WebOptimized = Preset{
		Name:           "web-optimized",
		Fit:            FitScaleToWidth,
		MaxWidth:       1920,
		BudgetBytes:    2 * 1024 * 1024,
		InitialQuality: 85,
		FloorQuality:   60,
		Step:           5,
	}

	Avatar = Preset{
		Name:           "avatar",
		Fit:            FitCropSquare,
		MaxWidth:       400,
		BudgetBytes:    200 * 1024,
		InitialQuality: 80,
		FloorQuality:   50,
		Step:           5,
	}
)

// DefaultPresets are the image derivatives produced for every image upload.
func DefaultPresets() []Preset {
	return []Preset{Thumbnail, WebOptimized}
}

// PresetByName looks up a built-in preset.
func PresetByName(name string) (Preset, bool) {
	for _, p := range []Preset{Thumbnail, WebOptimized, Avatar} {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Validate checks the ladder is finite and the quality range is sane.
func (p Preset) Validate() error {
	switch {
	case p.MaxWidth <= 0:
		return fmt.Errorf("%w: %s: max width must be positive", ErrInvalidPreset, p.Name)
	case p.Step <= 0:
		return fmt.Errorf("%w: %s: step must be positive", ErrInvalidPreset, p.Name)
	case p.FloorQuality < 1 || p.InitialQuality > 100:
		return fmt.Errorf("%w: %s: quality must be within 1..100", ErrInvalidPreset, p.Name)
	case p.FloorQuality > p.InitialQuality:
		return fmt.Errorf("%w: %s: floor %d above initial %d", ErrInvalidPreset, p.Name, p.FloorQuality, p.InitialQuality)
	}
	return nil
}

// MaxAttempts is the upper bound on encodes per codec for this preset.
func (p Preset) MaxAttempts() int {
	span := p.InitialQuality - p.FloorQuality
	return (span+p.Step-1)/p.Step + 1
}
