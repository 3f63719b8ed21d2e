// Package render turns token sequences into positioned regions on a
// surface. Every pass replaces the regions of the previous one.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/sched"
	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/surface"
	"github.com/docker/mdstream/pkg/token"
)

const defaultWidth = 80

// Context is what a RenderFunc needs to draw one token.
type Context struct {
	Theme    *styles.Theme
	Width    int
	Features config.Features
}

// RenderFunc draws a token. Registered with WithOverride it replaces the
// built-in rendering of a kind.
type RenderFunc func(t token.Token, ctx *Context) (string, error)

// Stats is the payload of the "render:complete" component event.
type Stats struct {
	Tokens  int
	Regions int
	Height  int
}

type Option func(*Engine)

func WithTheme(theme *styles.Theme) Option {
	return func(e *Engine) {
		e.theme = theme
	}
}

// WithMaxWidth caps the render width below the surface width.
func WithMaxWidth(width int) Option {
	return func(e *Engine) {
		e.maxWidth = width
	}
}

func WithAutoScroll(enabled bool) Option {
	return func(e *Engine) {
		e.autoScroll = enabled
	}
}

func WithSyntaxHighlight(enabled bool) Option {
	return func(e *Engine) {
		e.highlight = enabled
	}
}

func WithFeatures(f config.Features) Option {
	return func(e *Engine) {
		e.features = f
	}
}

func WithHighlighter(h Highlighter) Option {
	return func(e *Engine) {
		e.highlighter = h
	}
}

// WithScheduler sets where deferred highlighting runs. Without one, code
// is highlighted during the pass.
func WithScheduler(d sched.Deferrer) Option {
	return func(e *Engine) {
		e.scheduler = d
	}
}

func WithOverride(kind token.Kind, fn RenderFunc) Option {
	return func(e *Engine) {
		e.overrides[kind] = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithBus(b *bus.Bus) Option {
	return func(e *Engine) {
		e.events = b.Component("render")
	}
}

// Engine owns the regions of one surface. It is driven from a single
// goroutine.
type Engine struct {
	surface     surface.Surface
	theme       *styles.Theme
	maxWidth    int
	autoScroll  bool
	highlight   bool
	features    config.Features
	highlighter Highlighter
	scheduler   sched.Deferrer
	overrides   map[token.Kind]RenderFunc
	logger      *slog.Logger
	events      *bus.Component

	regions    []surface.Region
	tokens     token.Sequence
	generation uint64
	passes     int
}

func New(s surface.Surface, opts ...Option) *Engine {
	e := &Engine{
		surface:    s,
		autoScroll: true,
		highlight:  true,
		overrides:  map[token.Kind]RenderFunc{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.theme == nil {
		e.theme = styles.Default()
	}
	if e.highlighter == nil {
		e.highlighter = NewChromaHighlighter(e.theme)
	}
	return e
}

// Render replaces the attached regions with the regions of tokens and
// repaints once.
func (e *Engine) Render(tokens token.Sequence) error {
	if err := e.detach(); err != nil {
		return err
	}
	e.generation++
	e.passes++

	ctx := &Context{Theme: e.theme, Width: e.Width(), Features: e.features}
	l := layout{engine: e, ctx: ctx}

	var line token.Sequence
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		defer func() { line = line[:0] }()
		content, err := e.inlineLine(line, ctx)
		if err != nil {
			return e.renderError(tokens, "inline", err)
		}
		estimate := Height(token.Token{Kind: token.KindText, Content: line.PlainText()})
		_, err = l.place(content, estimate, "inline")
		return err
	}

	for _, t := range tokens {
		if t.Kind.IsInline() {
			line = append(line, t)
			if t.EndsBlock {
				if err := flush(); err != nil {
					return l.abort(err)
				}
			}
			continue
		}
		if err := flush(); err != nil {
			return l.abort(err)
		}

		content, deferred, err := e.block(t, ctx)
		if err != nil {
			return l.abort(e.renderError(tokens, t.Kind.String(), err))
		}
		r, err := l.place(content, Height(t), t.Kind.String())
		if err != nil {
			return l.abort(err)
		}
		if deferred != nil {
			l.pending = append(l.pending, func() error { return r.SetContent(deferred()) })
		}
	}
	if err := flush(); err != nil {
		return l.abort(err)
	}

	e.regions = l.regions
	e.tokens = tokens
	e.schedule(l.pending)

	if err := e.finish(); err != nil {
		return err
	}
	if e.events != nil {
		e.events.Emit("complete", Stats{Tokens: len(tokens), Regions: len(l.regions), Height: l.top})
	}
	return nil
}

// RenderPlain shows text in a single unstyled region. It is the degraded
// path used when styled rendering keeps failing.
func (e *Engine) RenderPlain(text string) error {
	if err := e.detach(); err != nil {
		return err
	}
	e.generation++
	e.passes++

	content := wrap(expandTabs(text, 0), e.Width())
	r, err := e.surface.CreateRegion(surface.RegionSpec{
		Width:   e.Width(),
		Height:  max(lineCount(content), 1),
		Content: content,
		Tags:    []string{"plain"},
	})
	if err != nil {
		return err
	}
	e.regions = []surface.Region{r}
	e.tokens = nil
	return e.finish()
}

// Clear detaches every region and repaints.
func (e *Engine) Clear() error {
	e.generation++
	e.tokens = nil
	if err := e.detach(); err != nil {
		return err
	}
	return e.surface.Repaint()
}

// Regions returns the regions of the last completed pass.
func (e *Engine) Regions() []surface.Region {
	return slices.Clone(e.regions)
}

// Tokens returns the sequence of the last completed pass.
func (e *Engine) Tokens() token.Sequence {
	return e.tokens
}

// Passes counts the render passes, plain ones included.
func (e *Engine) Passes() int {
	return e.passes
}

// Width is the surface width capped by the configured maximum.
func (e *Engine) Width() int {
	w, _ := e.surface.Size()
	switch {
	case w <= 0 && e.maxWidth <= 0:
		return defaultWidth
	case w <= 0:
		return e.maxWidth
	case e.maxWidth > 0:
		return min(w, e.maxWidth)
	}
	return w
}

func (e *Engine) Theme() *styles.Theme {
	return e.theme
}

func (e *Engine) detach() error {
	var errs []error
	for _, r := range e.regions {
		if err := e.surface.DestroyRegion(r); err != nil {
			errs = append(errs, err)
		}
	}
	e.regions = nil
	return errors.Join(errs...)
}

func (e *Engine) finish() error {
	if e.autoScroll {
		if err := e.surface.ScrollTo(1); err != nil {
			return err
		}
	}
	return e.surface.Repaint()
}

// schedule runs the deferred highlighting of this pass on the next tick and
// repaints once. Work from a pass that has been replaced is dropped.
func (e *Engine) schedule(pending []func() error) {
	if len(pending) == 0 {
		return
	}
	gen := e.generation
	e.scheduler.Defer(func() {
		if gen != e.generation {
			e.logger.Debug("Skipping highlight of a stale render pass")
			return
		}
		for _, fn := range pending {
			if err := fn(); err != nil {
				e.logger.Warn("Failed to update highlighted region", "error", err)
			}
		}
		if err := e.surface.Repaint(); err != nil {
			e.logger.Warn("Failed to repaint after highlighting", "error", err)
		}
	})
}

func (e *Engine) renderError(tokens token.Sequence, context string, err error) error {
	var re *recovery.RenderError
	if errors.As(err, &re) {
		return err
	}
	return &recovery.RenderError{Tokens: tokens, Context: context, Err: err}
}

// inlineLine renders consecutive inline tokens as one wrapped line.
func (e *Engine) inlineLine(line token.Sequence, ctx *Context) (out string, err error) {
	defer recoverInto(&err)

	var b strings.Builder
	for _, t := range line {
		if fn, ok := e.overrides[t.Kind]; ok {
			s, err := fn(t, ctx)
			if err != nil {
				return "", fmt.Errorf("override for %s: %w", t.Kind, err)
			}
			b.WriteString(s)
			continue
		}
		b.WriteString(inlineToken(e.theme, t))
	}
	return wrap(expandTabs(b.String(), 0), ctx.Width), nil
}

// block renders a block token. When the highlighter still has to resolve
// the grammar of a code block, the plain rendering is returned together
// with a function producing the highlighted one.
func (e *Engine) block(t token.Token, ctx *Context) (out string, deferred func() string, err error) {
	defer recoverInto(&err)

	if fn, ok := e.overrides[t.Kind]; ok {
		s, err := fn(t, ctx)
		if err != nil {
			return "", nil, fmt.Errorf("override for %s: %w", t.Kind, err)
		}
		return s, nil, nil
	}

	th, width := e.theme, ctx.Width
	switch t.Kind {
	case token.KindHeading:
		return renderHeading(th, t, width), nil, nil
	case token.KindHorizontalRule:
		return renderRule(th, width), nil, nil
	case token.KindBlockquote:
		return renderBlockquote(th, t, width), nil, nil
	case token.KindListItem:
		return renderListItem(th, t, width), nil, nil
	case token.KindTable:
		return renderTable(th, t, width, e.features.AdvancedTables), nil, nil
	case token.KindMathBlock:
		return renderMathBlock(th, t, width), nil, nil
	case token.KindDiagram:
		return renderDiagram(th, t, width), nil, nil
	case token.KindCodeBlock:
		return e.code(t, width)
	default:
		return wrap(inlineMarkdown(th, t.Content), width), nil, nil
	}
}

func (e *Engine) code(t token.Token, width int) (string, func() string, error) {
	if !e.highlight {
		return renderCode(e.theme, t, width, nil), nil, nil
	}
	hl := safeHighlighter{primary: e.highlighter, fallback: NewRegexHighlighter(e.theme), logger: e.logger}
	if p, ok := e.highlighter.(Preparer); ok && e.scheduler != nil && !p.Ready(t.Language) {
		return renderCode(e.theme, t, width, nil), func() string {
			p.Prepare(t.Language)
			return renderCode(e.theme, t, width, hl)
		}, nil
	}
	return renderCode(e.theme, t, width, hl), nil, nil
}

// safeHighlighter switches to the fallback when the primary panics.
type safeHighlighter struct {
	primary  Highlighter
	fallback Highlighter
	logger   *slog.Logger
}

func (h safeHighlighter) Highlight(code, lang string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Highlighter panicked, using fallback", "language", lang, "panic", r)
			out = h.fallback.Highlight(code, lang)
		}
	}()
	return h.primary.Highlight(code, lang)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

// layout accumulates the regions of one pass.
type layout struct {
	engine  *Engine
	ctx     *Context
	regions []surface.Region
	pending []func() error
	top     int
}

// place creates a region below the previous one. Its height is the larger
// of the estimate and the rendered line count so regions never overlap.
func (l *layout) place(content string, estimate int, tags ...string) (surface.Region, error) {
	h := max(estimate, lineCount(content))
	r, err := l.engine.surface.CreateRegion(surface.RegionSpec{
		Top:     l.top,
		Width:   l.ctx.Width,
		Height:  h,
		Content: content,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}
	l.regions = append(l.regions, r)
	l.top += h
	return r, nil
}

// abort destroys the regions of a failed pass so the attached set stays
// empty rather than half drawn.
func (l *layout) abort(err error) error {
	for _, r := range l.regions {
		if derr := l.engine.surface.DestroyRegion(r); derr != nil {
			l.engine.logger.Debug("Failed to destroy region of an aborted pass", "error", derr)
		}
	}
	return err
}
