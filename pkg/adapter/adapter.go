// Package adapter translates the events of an AI inference stream (text
// deltas, tool calls and results, reasoning, status and errors) into the
// markdown fed to a stream.
package adapter

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/ring"
)

// DroppedEvent is published on the bus for every event that was not
// rendered.
const DroppedEvent = "adapter:dropped"

const (
	defaultMaxToolResultLength = 200
	defaultAuditSize           = 100
)

// Sink receives the formatted markdown.
type Sink interface {
	Stream(chunk string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(chunk string)

func (f SinkFunc) Stream(chunk string) { f(chunk) }

// Options controls what is rendered and how.
type Options struct {
	ShowThinking        bool
	HideToolCalls       bool
	RenderTimestamps    bool
	MaxToolResultLength int
}

// DefaultOptions shows everything and truncates tool results at 200 runes.
func DefaultOptions() Options {
	return Options{ShowThinking: true, MaxToolResultLength: defaultMaxToolResultLength}
}

// OptionsFrom extracts the adapter settings of a stream configuration.
func OptionsFrom(cfg config.Options) Options {
	return Options{
		ShowThinking:        cfg.ShowThinking,
		HideToolCalls:       cfg.HideToolCalls,
		RenderTimestamps:    cfg.RenderTimestamps,
		MaxToolResultLength: cfg.MaxToolResultLength,
	}
}

// Dropped records an event that was filtered out or failed validation.
type Dropped struct {
	Event  Event
	Reason string
	Time   time.Time
}

type Option func(*Adapter)

func WithBus(b *bus.Bus) Option {
	return func(a *Adapter) {
		a.bus = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithAuditSize sets how many dropped events are retained.
func WithAuditSize(n int) Option {
	return func(a *Adapter) {
		a.dropped = ring.New[Dropped](n)
	}
}

// Adapter formats events and forwards them to a Sink. It is driven from a
// single goroutine.
type Adapter struct {
	sink    Sink
	opts    Options
	bus     *bus.Bus
	logger  *slog.Logger
	now     func() time.Time
	dropped *ring.Buffer[Dropped]
}

func New(sink Sink, opts Options, options ...Option) *Adapter {
	if opts.MaxToolResultLength == 0 {
		opts.MaxToolResultLength = defaultMaxToolResultLength
	}
	a := &Adapter{
		sink:    sink,
		opts:    opts,
		logger:  slog.Default(),
		now:     time.Now,
		dropped: ring.New[Dropped](defaultAuditSize),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *Adapter) Options() Options {
	return a.opts
}

// Validate checks that ev has a known type and the fields its type needs.
func (a *Adapter) Validate(ev Event) error {
	return Validate(ev)
}

// Validate checks that ev has a known type and the fields its type needs.
func Validate(ev Event) error {
	invalid := func(reason string) error {
		return &recovery.AdapterError{Event: ev, Reason: reason}
	}

	switch {
	case ev.Type == "":
		return invalid("missing event type")
	case !ev.Type.Known():
		return invalid(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	switch ev.Type {
	case EventToolCall:
		if strings.TrimSpace(ev.ToolName) == "" {
			return invalid("tool-call without tool name")
		}
	case EventToolResult:
		if ev.ToolResult == nil && ev.Content == "" {
			return invalid("tool-result without result")
		}
	case EventError:
		if ev.Content == "" && ev.ErrorCode == "" {
			return invalid("error without message or code")
		}
	case EventThinking, EventReasoning, EventStatus, EventStep:
		if ev.Content == "" {
			return invalid(string(ev.Type) + " without content")
		}
	}
	return nil
}

// ShouldRender applies the visibility options to ev.
func (a *Adapter) ShouldRender(ev Event) bool {
	switch ev.Type {
	case EventThinking, EventReasoning:
		return a.opts.ShowThinking
	case EventToolCall, EventToolResult:
		return !a.opts.HideToolCalls
	}
	return true
}

// ProcessEvent validates, filters and formats ev and sends the result to
// the sink. Invalid events return an *recovery.AdapterError; filtered
// events are recorded as dropped and return nil.
func (a *Adapter) ProcessEvent(ev Event) error {
	if err := Validate(ev); err != nil {
		a.drop(ev, err.Error())
		return err
	}
	if !a.ShouldRender(ev) {
		a.drop(ev, "filtered")
		return nil
	}

	out, err := a.Format(ev)
	if err != nil {
		a.drop(ev, err.Error())
		return err
	}
	if out != "" {
		a.sink.Stream(out)
	}
	return nil
}

// Dropped returns the retained dropped events, oldest first.
func (a *Adapter) Dropped() []Dropped {
	return a.dropped.All()
}

func (a *Adapter) drop(ev Event, reason string) {
	d := Dropped{Event: ev, Reason: reason, Time: a.now()}
	a.dropped.Push(d)
	a.logger.Debug("Dropped event", "type", ev.Type, "reason", reason)
	if a.bus != nil {
		a.bus.Publish(DroppedEvent, d)
	}
}

// Format renders ev as markdown. The output only depends on the event and
// the options; events without a timestamp are stamped with the clock.
func (a *Adapter) Format(ev Event) (string, error) {
	var body string
	switch ev.Type {
	case EventTextDelta:
		return ev.Content, nil
	case EventToolCall:
		body = FormatToolCall(ev.ToolName, ev.ToolArgs)
	case EventToolResult:
		body = a.formatToolResult(ev)
	case EventThinking:
		body = quote("💭 " + ev.Content)
	case EventReasoning:
		body = quote("🧠 " + ev.Content)
	case EventStatus, EventStep:
		body = StatusIcon(ev.Status) + " **" + strings.TrimSpace(ev.Content) + "**"
	case EventError:
		body = formatError(ev)
	case EventStart:
		body = "🚀 **Started**"
		if ev.Metadata != nil && ev.Metadata.Model != "" {
			body += " `" + ev.Metadata.Model + "`"
		}
	case EventComplete:
		body = "🎉 **Complete**"
		if m := ev.Metadata; m != nil && (m.InputTokens > 0 || m.OutputTokens > 0) {
			body += fmt.Sprintf(" (%d in, %d out tokens)", m.InputTokens, m.OutputTokens)
		}
	default:
		return "", &recovery.AdapterError{Event: ev, Reason: fmt.Sprintf("no formatter for %q", ev.Type)}
	}

	if ts := ev.timestamp(); a.opts.RenderTimestamps && !ts.IsZero() {
		body = "`" + ts.Format(time.TimeOnly) + "` " + body
	}
	return "\n\n" + body + "\n\n", nil
}

// FormatToolResult renders a result with the configured truncation.
func (a *Adapter) FormatToolResult(result any) string {
	return FormatToolResult(result, a.opts.MaxToolResultLength)
}

func (a *Adapter) formatToolResult(ev Event) string {
	header := "✅ **Result**"
	if ev.ToolName != "" {
		header = "✅ **" + ev.ToolName + "**"
	}
	result := ev.ToolResult
	if result == nil {
		result = ev.Content
	}
	body := a.FormatToolResult(result)
	if body == "" {
		return header
	}
	if strings.HasPrefix(body, "```") {
		return header + "\n\n" + body
	}
	return header + ": " + body
}

func formatError(ev Event) string {
	out := "❌ **Error**"
	if ev.ErrorCode != "" {
		out += " `" + ev.ErrorCode + "`"
	}
	if ev.Content != "" {
		out += ": " + ev.Content
	}
	return out
}
