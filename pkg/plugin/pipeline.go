// Package plugin runs source rewrites before the parser and token rewrites
// after it. Every stage fails open: a plugin that errors or panics is
// skipped and the pipeline continues with the stage input.
package plugin

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/token"
)

// WarningEvent is published on the bus for every failed plugin stage.
const WarningEvent = "plugin:warning"

type Stage string

const (
	StagePreParse  Stage = "pre-parse"
	StagePostParse Stage = "post-parse"
)

// Plugin is the common part of every plugin. A plugin takes part in a stage
// by also implementing PreParser or PostParser.
type Plugin interface {
	Name() string
}

// PreParser rewrites the markdown source before it is lexed.
type PreParser interface {
	PreParse(src string, ctx *Context) (string, []string, error)
}

// PostParser rewrites the token sequence produced by the parser.
type PostParser interface {
	PostParse(tokens token.Sequence, ctx *Context) (token.Sequence, []string, error)
}

// Context is shared by the plugins of one pipeline run.
type Context struct {
	Features config.Features
	Metadata map[string]any
}

// Result is the output of a stage together with the warnings it produced.
type Result[T any] struct {
	Value    T
	Warnings []string
}

// Warning is the payload of WarningEvent.
type Warning struct {
	Plugin  string
	Stage   Stage
	Message string
}

type Option func(*Pipeline)

func WithBus(b *bus.Bus) Option {
	return func(p *Pipeline) {
		p.bus = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMaxContentLength sets the per-token content cap of the security
// plugin.
func WithMaxContentLength(n int) Option {
	return func(p *Pipeline) {
		p.maxContent = n
	}
}

// Pipeline holds the registered plugins in execution order.
type Pipeline struct {
	plugins    []Plugin
	features   config.Features
	maxContent int
	bus        *bus.Bus
	logger     *slog.Logger
}

// New registers the built-in plugins enabled by features: security first so
// later stages only ever see sanitized input, then math and diagrams.
func New(features config.Features, opts ...Option) *Pipeline {
	p := &Pipeline{
		features:   features,
		maxContent: DefaultMaxContentLength,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if features.SecurityHardening {
		p.plugins = append(p.plugins, NewSecurity(p.maxContent))
	}
	if features.Math {
		p.plugins = append(p.plugins, Math{})
	}
	if features.Diagram {
		p.plugins = append(p.plugins, Diagram{})
	}
	return p
}

// Register appends a user plugin after the built-ins.
func (p *Pipeline) Register(plugin Plugin) {
	p.plugins = append(p.plugins, plugin)
}

// Names lists the registered plugins in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.plugins))
	for i, pl := range p.plugins {
		names[i] = pl.Name()
	}
	return names
}

// NewContext returns a context carrying the pipeline features.
func (p *Pipeline) NewContext() *Context {
	return &Context{Features: p.features, Metadata: map[string]any{}}
}

func (p *Pipeline) ProcessPreParse(src string, ctx *Context) Result[string] {
	if ctx == nil {
		ctx = p.NewContext()
	}
	res := Result[string]{Value: src}
	for _, pl := range p.plugins {
		pre, ok := pl.(PreParser)
		if !ok {
			continue
		}
		out, warnings, err := safeCall(func() (string, []string, error) {
			return pre.PreParse(res.Value, ctx)
		})
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			res.Warnings = append(res.Warnings, p.fail(pl, StagePreParse, err))
			continue
		}
		res.Value = out
	}
	return res
}

func (p *Pipeline) ProcessPostParse(tokens token.Sequence, ctx *Context) Result[token.Sequence] {
	if ctx == nil {
		ctx = p.NewContext()
	}
	res := Result[token.Sequence]{Value: tokens}
	for _, pl := range p.plugins {
		post, ok := pl.(PostParser)
		if !ok {
			continue
		}
		out, warnings, err := safeCall(func() (token.Sequence, []string, error) {
			return post.PostParse(res.Value.Clone(), ctx)
		})
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			res.Warnings = append(res.Warnings, p.fail(pl, StagePostParse, err))
			continue
		}
		res.Value = out
	}
	return res
}

func (p *Pipeline) fail(pl Plugin, stage Stage, err error) string {
	msg := fmt.Sprintf("plugin %s failed during %s: %v", pl.Name(), stage, err)
	p.logger.Warn("Plugin failed, continuing with unchanged input", "plugin", pl.Name(), "stage", stage, "error", err)
	if p.bus != nil {
		p.bus.Publish(WarningEvent, Warning{Plugin: pl.Name(), Stage: stage, Message: msg})
	}
	return msg
}

func safeCall[T any](fn func() (T, []string, error)) (out T, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Plugin panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
