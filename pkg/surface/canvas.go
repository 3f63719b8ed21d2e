package surface

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/docker/mdstream/pkg/recovery"
)

var (
	ErrUnknownRegion = errors.New("unknown region")
	ErrClosed        = errors.New("surface closed")
)

// Canvas is an in-memory surface. It composes its regions into a frame on
// every repaint; the CLI prints frames and tests assert on them.
type Canvas struct {
	mu       sync.Mutex
	width    int
	height   int
	regions  []*canvasRegion
	scroll   float64
	repaints int
	frame    string
	closed   bool
	onPaint  func(frame string)
}

type CanvasOption func(*Canvas)

// OnRepaint registers a callback receiving each composed frame.
func OnRepaint(fn func(frame string)) CanvasOption {
	return func(c *Canvas) {
		c.onPaint = fn
	}
}

// NewCanvas creates a canvas of the given size. A height of 0 means
// unbounded.
func NewCanvas(width, height int, opts ...CanvasOption) *Canvas {
	c := &Canvas{width: width, height: height}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type canvasRegion struct {
	id     string
	canvas *Canvas

	mu   sync.Mutex
	spec RegionSpec
}

func (r *canvasRegion) ID() string {
	return r.id
}

func (r *canvasRegion) Spec() RegionSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spec
}

func (r *canvasRegion) SetContent(content string) error {
	if !r.canvas.attached(r) {
		return &recovery.ToolkitError{Op: "set-content", Err: fmt.Errorf("%w: %s", ErrUnknownRegion, r.id)}
	}
	r.mu.Lock()
	r.spec.Content = content
	r.mu.Unlock()
	return nil
}

func (c *Canvas) CreateRegion(spec RegionSpec) (Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &recovery.ToolkitError{Op: "create-region", Err: ErrClosed}
	}
	if spec.Width <= 0 {
		spec.Width = c.width
	}
	r := &canvasRegion{id: uuid.NewString(), canvas: c, spec: spec}
	c.regions = append(c.regions, r)
	return r, nil
}

func (c *Canvas) DestroyRegion(region Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.regions {
		if r == region {
			c.regions = append(c.regions[:i:i], c.regions[i+1:]...)
			return nil
		}
	}
	id := "<nil>"
	if region != nil {
		id = region.ID()
	}
	return &recovery.ToolkitError{Op: "destroy-region", Err: fmt.Errorf("%w: %s", ErrUnknownRegion, id)}
}

func (c *Canvas) ScrollTo(percent float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scroll = min(max(percent, 0), 1)
	return nil
}

func (c *Canvas) Repaint() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &recovery.ToolkitError{Op: "repaint", Err: ErrClosed}
	}
	c.repaints++
	c.frame = c.compose()
	frame, onPaint := c.frame, c.onPaint
	c.mu.Unlock()

	if onPaint != nil {
		onPaint(frame)
	}
	return nil
}

func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Resize changes the canvas size. Regions keep their specs.
func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
}

// Close detaches every region; later calls fail with ErrClosed.
func (c *Canvas) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.regions = nil
}

// View returns the last painted frame.
func (c *Canvas) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Plain returns the last painted frame without escape sequences.
func (c *Canvas) Plain() string {
	return ansi.Strip(c.View())
}

func (c *Canvas) Regions() []Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Region, len(c.regions))
	for i, r := range c.regions {
		out[i] = r
	}
	return out
}

func (c *Canvas) Repaints() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repaints
}

func (c *Canvas) Scroll() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scroll
}

func (c *Canvas) attached(region *canvasRegion) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.regions {
		if r == region {
			return true
		}
	}
	return false
}

// compose lays the regions out on a line grid. Regions are drawn in
// creation order; a later region overwrites the cells of an earlier one.
func (c *Canvas) compose() string {
	var rows []string
	for _, r := range c.regions {
		spec := r.Spec()
		for i, line := range strings.Split(RenderSpec(spec), "\n") {
			if spec.Height > 0 && i >= spec.Height {
				break
			}
			row := spec.Top + i
			for len(rows) <= row {
				rows = append(rows, "")
			}
			rows[row] = place(rows[row], line, spec.Left)
		}
	}

	for i, row := range rows {
		if c.width > 0 {
			row = ansi.Truncate(row, c.width, "")
		}
		rows[i] = strings.TrimRight(row, " ")
	}
	return strings.Join(rows, "\n")
}

// RenderSpec applies the style and border of spec to its content.
func RenderSpec(spec RegionSpec) string {
	style := spec.Style
	if spec.Border != nil {
		style = style.Border(*spec.Border)
	}
	return style.Render(spec.Content)
}

// place writes line into row starting at column left.
func place(row, line string, left int) string {
	width := ansi.StringWidth(row)
	if width < left {
		return row + strings.Repeat(" ", left-width) + line
	}
	return ansi.Truncate(row, left, "") + line
}
