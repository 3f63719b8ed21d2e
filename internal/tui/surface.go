package tui

import (
	"github.com/docker/mdstream/pkg/surface"
)

// The Model is the surface its stream renders to. Regions are composed by an
// in-memory canvas; every repaint hands the composed frame to the viewport.

func (m *Model) CreateRegion(spec surface.RegionSpec) (surface.Region, error) {
	return m.canvas.CreateRegion(spec)
}

func (m *Model) DestroyRegion(r surface.Region) error {
	return m.canvas.DestroyRegion(r)
}

// ScrollTo is applied on the next repaint, once the viewport holds the new
// content. It is ignored while the user has scrolled away from the bottom.
func (m *Model) ScrollTo(percent float64) error {
	if err := m.canvas.ScrollTo(percent); err != nil {
		return err
	}
	m.scrollPending = true
	return nil
}

func (m *Model) Repaint() error {
	if err := m.canvas.Repaint(); err != nil {
		return err
	}
	m.viewport.SetContent(m.canvas.View())
	if m.scrollPending && m.follow {
		m.scrollViewport(m.canvas.Scroll())
	}
	m.scrollPending = false
	m.repaints++
	return nil
}

// Size reports the viewport width. The height is unbounded: the viewport
// scrolls over the whole document.
func (m *Model) Size() (int, int) {
	return m.viewport.Width(), 0
}

func (m *Model) scrollViewport(percent float64) {
	if percent >= 1 {
		m.viewport.GotoBottom()
		return
	}
	maxOffset := max(m.viewport.TotalLineCount()-m.viewport.Height(), 0)
	m.viewport.SetYOffset(int(percent * float64(maxOffset)))
}

var _ surface.Surface = (*Model)(nil)
