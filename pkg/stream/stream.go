// Package stream wires the parser, the plugin pipeline, the render engine
// and the event adapter into the API a producer of AI output talks to.
//
// A Stream is driven from a single goroutine. Chunks are parsed as soon as
// they arrive; rendering is deferred to the next tick of the scheduling
// queue so a burst of chunks produces one render.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docker/mdstream/pkg/adapter"
	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/parser"
	"github.com/docker/mdstream/pkg/perf"
	"github.com/docker/mdstream/pkg/plugin"
	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/render"
	"github.com/docker/mdstream/pkg/sched"
	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/surface"
	"github.com/docker/mdstream/pkg/token"
)

// ErrClosed is returned by the operations of a closed stream.
var ErrClosed = errors.New("stream closed")

type Option func(*Stream)

// WithConfig replaces the default options. They are validated by New.
func WithConfig(cfg config.Options) Option {
	return func(s *Stream) {
		s.cfg = cfg
	}
}

func WithBus(b *bus.Bus) Option {
	return func(s *Stream) {
		s.bus = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		s.logger = logger
	}
}

// WithQueue shares a scheduling queue with the host. The host calls Flush
// on it once per tick.
func WithQueue(q *sched.Queue) Option {
	return func(s *Stream) {
		s.queue = q
	}
}

// WithLexer replaces the goldmark lexer.
func WithLexer(l parser.Lexer) Option {
	return func(s *Stream) {
		s.parserOpts = append(s.parserOpts, parser.WithLexer(l))
	}
}

// WithPlugin registers a plugin after the built-in ones.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Stream) {
		s.plugins = append(s.plugins, p)
	}
}

// WithOverride replaces the rendering of one token kind.
func WithOverride(kind token.Kind, fn render.RenderFunc) Option {
	return func(s *Stream) {
		s.renderOpts = append(s.renderOpts, render.WithOverride(kind, fn))
	}
}

// WithHighlighter replaces the chroma highlighter.
func WithHighlighter(h render.Highlighter) Option {
	return func(s *Stream) {
		s.renderOpts = append(s.renderOpts, render.WithHighlighter(h))
	}
}

// WithMonitorOptions customizes the performance monitor.
func WithMonitorOptions(opts ...perf.Option) Option {
	return func(s *Stream) {
		s.monitorOpts = append(s.monitorOpts, opts...)
	}
}

// WithContext sets the context the stream operations run in. It carries
// the trace of the host.
func WithContext(ctx context.Context) Option {
	return func(s *Stream) {
		s.ctx = ctx
	}
}

// Stream renders markdown fragments on a surface as they arrive.
type Stream struct {
	id      string
	cfg     config.Options
	ctx     context.Context
	surface surface.Surface
	bus     *bus.Bus
	logger  *slog.Logger

	parser    *parser.Parser
	pipeline  *plugin.Pipeline
	pluginCtx *plugin.Context
	engine    *render.Engine
	adapter   *adapter.Adapter
	queue     *sched.Queue
	handler   *recovery.Handler
	monitor   *perf.Monitor
	lifecycle *bus.Lifecycle
	events    *bus.Component

	parseOp  *recovery.SafeOperation[token.Sequence]
	renderOp *recovery.SafeOperation[struct{}]

	parserOpts  []parser.Option
	renderOpts  []render.Option
	monitorOpts []perf.Option
	plugins     []plugin.Plugin

	tokens  token.Sequence
	pending bool
	closed  bool
	lastErr error
	renders int
}

// New builds a stream drawing on s. The configuration is validated first;
// an invalid one returns a *recovery.ConfigError.
func New(s surface.Surface, opts ...Option) (*Stream, error) {
	st := &Stream{
		id:      uuid.NewString(),
		cfg:     config.Default(),
		ctx:     context.Background(),
		surface: s,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(st)
	}
	if err := st.cfg.Validate(); err != nil {
		return nil, err
	}
	if st.bus == nil {
		st.bus = bus.New(bus.WithLogger(st.logger))
	}
	if st.queue == nil {
		st.queue = sched.NewQueue()
	}

	theme, ok := styles.Lookup(st.cfg.Theme)
	if !ok {
		return nil, &recovery.ConfigError{Option: "theme", Value: st.cfg.Theme, Reason: "unknown theme"}
	}

	st.events = st.bus.Component("stream")
	st.handler = recovery.NewHandler(st.cfg.Retry.Policy(), recovery.WithBus(st.bus), recovery.WithLogger(st.logger))
	st.monitor = perf.New(st.cfg.Performance, append([]perf.Option{perf.WithBus(st.bus), perf.WithLogger(st.logger)}, st.monitorOpts...)...)
	st.lifecycle = bus.NewLifecycle(st.bus, st.logger)

	st.pipeline = plugin.New(st.cfg.Features, plugin.WithBus(st.bus), plugin.WithLogger(st.logger))
	for _, p := range st.plugins {
		st.pipeline.Register(p)
	}
	st.pluginCtx = st.pipeline.NewContext()

	st.parser = parser.New(append([]parser.Option{
		parser.WithGFM(st.cfg.GFM),
		parser.WithIncomplete(st.cfg.ParseIncompleteMarkdown),
		parser.WithLogger(st.logger),
		parser.WithTransform(st.preParse),
	}, st.parserOpts...)...)

	st.engine = render.New(s, append([]render.Option{
		render.WithTheme(theme),
		render.WithMaxWidth(st.cfg.MaxWidth),
		render.WithAutoScroll(st.cfg.AutoScroll),
		render.WithSyntaxHighlight(st.cfg.SyntaxHighlight),
		render.WithFeatures(st.cfg.Features),
		render.WithScheduler(st.queue),
		render.WithLogger(st.logger),
		render.WithBus(st.bus),
	}, st.renderOpts...)...)

	st.adapter = adapter.New(st, adapter.OptionsFrom(st.cfg), adapter.WithBus(st.bus), adapter.WithLogger(st.logger))

	st.parseOp = &recovery.SafeOperation[token.Sequence]{
		Name:     "parse",
		Handler:  st.handler,
		Logger:   st.logger,
		Fallback: st.parseFallback,
	}
	st.renderOp = &recovery.SafeOperation[struct{}]{
		Name:     "render",
		Handler:  st.handler,
		Logger:   st.logger,
		Fallback: st.renderFallback,
	}

	if errs := st.lifecycle.Run(st.ctx, bus.PointInit); len(errs) > 0 {
		st.logger.Warn("Init hooks failed", "stream", st.id, "errors", len(errs))
	}
	st.events.Emit("init", st.id)
	return st, nil
}

// ID identifies the stream in logs and bus payloads.
func (s *Stream) ID() string {
	return s.id
}

// Stream appends a chunk. The chunk is parsed now and rendered on the next
// tick. Errors never reach the caller; they are recovered, logged and
// published on the bus.
func (s *Stream) Stream(chunk string) {
	if s.closed {
		s.logger.Debug("Dropping chunk for closed stream", "stream", s.id)
		return
	}
	s.monitor.CheckChunk(len(chunk))

	timer := s.monitor.Begin(s.ctx, "parse")
	appended := false
	seq, err := s.parseOp.Try(timer.Context(), func(context.Context) (token.Sequence, error) {
		if !appended {
			appended = true
			return s.parser.AddChunk(chunk)
		}
		return s.parser.Parse()
	})
	if err != nil {
		s.lastErr = err
		if seq == nil {
			seq = s.parser.Tokens()
		}
	}

	post := s.pipeline.ProcessPostParse(seq, s.pluginCtx)
	s.tokens = post.Value
	s.monitor.CheckTokens(len(s.tokens))
	timer.End(map[string]any{"chunk_size": len(chunk), "tokens": len(s.tokens)})

	s.events.Emit("chunk", len(chunk))
	s.schedule()
}

// SetContent replaces the buffer with md and renders synchronously.
func (s *Stream) SetContent(md string) {
	s.Clear()
	s.Stream(md)
	s.Render()
}

// Render draws the current tokens now. A pending deferred render is
// cancelled.
func (s *Stream) Render() {
	s.pending = false
	if s.closed {
		return
	}
	if errs := s.lifecycle.Run(s.ctx, bus.PointBeforeRender); len(errs) > 0 {
		s.logger.Debug("Before-render hooks failed", "errors", len(errs))
	}

	tokens := s.tokens
	timer := s.monitor.Begin(s.ctx, "render")
	_, err := s.renderOp.Try(timer.Context(), func(context.Context) (struct{}, error) {
		return struct{}{}, s.engine.Render(tokens)
	})
	timer.End(map[string]any{"tokens": len(tokens)})
	s.renders++

	if err != nil {
		s.lastErr = err
		if recovery.Classify(err) == recovery.SeverityCritical {
			s.events.Emit("error", err)
		}
	}
	if errs := s.lifecycle.Run(s.ctx, bus.PointAfterRender); len(errs) > 0 {
		s.logger.Debug("After-render hooks failed", "errors", len(errs))
	}
	s.events.Emit("rendered", len(tokens))
}

// Clear empties the buffer and the surface.
func (s *Stream) Clear() {
	s.parser.Clear()
	s.tokens = nil
	s.pending = false
	if err := s.engine.Clear(); err != nil {
		s.lastErr = err
		s.logger.Warn("Failed to clear surface", "stream", s.id, "error", err)
	}
	s.lifecycle.Run(s.ctx, bus.PointClear)
}

// StreamEvent feeds one AI event through the adapter. Invalid events are
// returned as *recovery.AdapterError after their content, if any, has been
// streamed as plain text.
func (s *Stream) StreamEvent(ctx context.Context, ev adapter.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}

	err := s.adapter.ProcessEvent(ev)
	if err == nil {
		return nil
	}
	s.handler.Decide(err, 0)
	if text, ok := recovery.TextFallback(err); ok {
		s.Stream(text)
	}
	return err
}

// StreamEvents consumes events until the channel closes, ctx is done or
// until reports true. until may be nil. Each batch of events that is
// already available is rendered once. Tokens buffered when consumption
// stops are still rendered. Invalid events are skipped.
func (s *Stream) StreamEvents(ctx context.Context, events <-chan adapter.Event, until func() bool) error {
	defer s.Flush()

	stopped := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if until != nil && until() {
			return errStopped
		}
		return nil
	}
	consume := func(ev adapter.Event) {
		if err := s.StreamEvent(ctx, ev); err != nil {
			s.logger.Debug("Skipping invalid event", "stream", s.id, "error", err)
		}
	}

	for {
		if err := stopped(); err != nil {
			return ignoreStop(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			consume(ev)
		}

	drain:
		for {
			if err := stopped(); err != nil {
				return ignoreStop(err)
			}
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				consume(ev)
			default:
				break drain
			}
		}
		s.Flush()
	}
}

var errStopped = errors.New("stopped")

func ignoreStop(err error) error {
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

// Content returns the accumulated markdown.
func (s *Stream) Content() string {
	return s.parser.Content()
}

// Tokens returns the current token sequence.
func (s *Stream) Tokens() token.Sequence {
	return s.tokens.Clone()
}

// Flush runs the work deferred to the current tick: the pending render and
// any deferred highlighting. It returns the number of tasks run.
func (s *Stream) Flush() int {
	return s.queue.Flush()
}

func (s *Stream) Bus() *bus.Bus {
	return s.bus
}

func (s *Stream) Monitor() *perf.Monitor {
	return s.monitor
}

func (s *Stream) Lifecycle() *bus.Lifecycle {
	return s.lifecycle
}

func (s *Stream) Adapter() *adapter.Adapter {
	return s.adapter
}

func (s *Stream) Engine() *render.Engine {
	return s.engine
}

// ErrorStats returns the number of errors seen per code.
func (s *Stream) ErrorStats() map[string]int {
	return s.handler.Stats()
}

// LastError returns the last error that could not be recovered without a
// fallback, or nil.
func (s *Stream) LastError() error {
	return s.lastErr
}

// Renders counts the render passes run by the stream.
func (s *Stream) Renders() int {
	return s.renders
}

// Close runs the destroy hooks and clears the surface. Later chunks are
// dropped.
func (s *Stream) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	errs := s.lifecycle.Run(ctx, bus.PointDestroy)
	s.queue.Discard()
	s.pending = false
	if err := s.engine.Clear(); err != nil {
		errs = append(errs, err)
	}
	s.closed = true
	s.events.Emit("destroy", s.id)
	return errors.Join(errs...)
}

func (s *Stream) schedule() {
	if s.pending {
		return
	}
	s.pending = true
	s.queue.Defer(func() {
		if !s.pending {
			return
		}
		s.Render()
	})
}

func (s *Stream) preParse(src string) string {
	return s.pipeline.ProcessPreParse(src, s.pluginCtx).Value
}

// parseFallback shows the buffer as a single text token when it cannot be
// parsed.
func (s *Stream) parseFallback(_ context.Context, err error) (token.Sequence, bool) {
	content := s.parser.Content()
	if content == "" {
		return nil, false
	}
	s.logger.Debug("Parsing failed, showing raw text", "stream", s.id, "error", err)
	return token.Sequence{{Kind: token.KindText, Content: content, Raw: content, EndsBlock: true}}, true
}

// renderFallback draws the tokens of the failed pass, or the raw buffer,
// without styling.
func (s *Stream) renderFallback(_ context.Context, err error) (struct{}, bool) {
	text, ok := recovery.TextFallback(err)
	if !ok {
		text = s.parser.Content()
	}
	if text == "" {
		return struct{}{}, false
	}
	if perr := s.engine.RenderPlain(text); perr != nil {
		s.logger.Warn("Plain rendering failed", "stream", s.id, "error", fmt.Errorf("%w (after %w)", perr, err))
		return struct{}{}, false
	}
	return struct{}{}, true
}
