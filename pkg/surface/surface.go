// Package surface defines the terminal capabilities the render engine relies
// on: positioned text regions, scrolling and repainting.
package surface

import (
	"charm.land/lipgloss/v2"
)

// RegionSpec describes a positioned block of text.
type RegionSpec struct {
	Top     int
	Left    int
	Width   int
	Height  int
	Content string
	Tags    []string
	Style   lipgloss.Style
	Border  *lipgloss.Border
}

// Region is a live region attached to a surface.
type Region interface {
	ID() string
	Spec() RegionSpec
	// SetContent replaces the region text. The change is visible after the
	// next repaint.
	SetContent(content string) error
}

// Surface is the toolkit capability interface. Implementations report
// failures as *recovery.ToolkitError.
type Surface interface {
	CreateRegion(spec RegionSpec) (Region, error)
	DestroyRegion(r Region) error
	// ScrollTo moves the viewport to percent, 0 being the top and 1 the
	// bottom of the content.
	ScrollTo(percent float64) error
	Repaint() error
	Size() (width, height int)
}
