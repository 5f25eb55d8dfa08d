package form

import (
	"errors"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

const (
	DefaultMinTextWidth        = 8.0
	DefaultMinTextHeight       = 8.0
	DefaultMinCheckboxSize     = 8.0
	DefaultTextWidth           = 140.0
	DefaultTextHeight          = 24.0
	DefaultCheckboxSize        = 18.0
	DefaultDuplicateOffset     = 12.0
	DefaultHistoryLimit        = 200
	defaultTextNamePrefix      = "text_"
	defaultCheckboxNamePrefix  = "checkbox_"
	defaultMaxGeneratedNameTry = 1 << 20
)

// Policy holds the size rules and defaults applied by the model.
type Policy struct {
	MinTextWidth    float64
	MinTextHeight   float64
	MinCheckboxSize float64
	// DefaultTextSize is the size of a placed text field as seen on screen.
	DefaultTextSize geometry.Size
	// DefaultCheckboxSize is the side of a placed checkbox.
	DefaultCheckboxSize float64
	DuplicateOffset     float64
	HistoryLimit        int
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		MinTextWidth:        DefaultMinTextWidth,
		MinTextHeight:       DefaultMinTextHeight,
		MinCheckboxSize:     DefaultMinCheckboxSize,
		DefaultTextSize:     geometry.Size{Width: DefaultTextWidth, Height: DefaultTextHeight},
		DefaultCheckboxSize: DefaultCheckboxSize,
		DuplicateOffset:     DefaultDuplicateOffset,
		HistoryLimit:        DefaultHistoryLimit,
	}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.MinTextWidth <= 0 || p.MinTextHeight <= 0 {
		return errors.New("minimum text field size must be positive")
	}
	if p.MinCheckboxSize <= 0 {
		return errors.New("minimum checkbox size must be positive")
	}
	if p.DefaultTextSize.Width < p.MinTextWidth || p.DefaultTextSize.Height < p.MinTextHeight {
		return errors.New("default text field size is below the minimum")
	}
	if p.DefaultCheckboxSize < p.MinCheckboxSize {
		return errors.New("default checkbox size is below the minimum")
	}
	if p.DuplicateOffset < 0 {
		return errors.New("duplicate offset cannot be negative")
	}
	return nil
}

// MinimumSize returns the smallest allowed size for a kind.
func (p Policy) MinimumSize(k Kind) geometry.Size {
	if k == KindCheckbox {
		return geometry.Size{Width: p.MinCheckboxSize, Height: p.MinCheckboxSize}
	}
	return geometry.Size{Width: p.MinTextWidth, Height: p.MinTextHeight}
}

// DefaultSize returns the on-screen size of a newly placed field.
func (p Policy) DefaultSize(k Kind) geometry.Size {
	if k == KindCheckbox {
		return geometry.Size{Width: p.DefaultCheckboxSize, Height: p.DefaultCheckboxSize}
	}
	return p.DefaultTextSize
}
