package root

import (
	"context"
	"io"
	"log/slog"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/docker/mdstream/internal/tui"
	"github.com/docker/mdstream/pkg/adapter"
	"github.com/docker/mdstream/pkg/cli"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/stream"
	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/surface"
)

// feed receives the input of a session, either markdown chunks or agent
// events.
type feed interface {
	Content(md string)
	Chunk(chunk string)
	Event(ev adapter.Event)
}

// producer pushes the whole input of a session to a feed. It returns early
// with ctx.Err() when ctx is cancelled.
type producer func(ctx context.Context, f feed) error

type sessionFlags struct {
	tui     bool
	summary bool
}

func addSessionFlags(cmd *cobra.Command, f *sessionFlags) {
	cmd.Flags().BoolVar(&f.tui, "tui", false, "Show the output in a full-screen viewer (requires a terminal)")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "Print render statistics to stderr when done")
}

// session renders the input of one producer.
type session struct {
	root   *rootFlags
	flags  sessionFlags
	source string
	opts   config.Options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newSession(cmd *cobra.Command, root *rootFlags, flags sessionFlags, source string) (*session, error) {
	opts, err := root.options()
	if err != nil {
		return nil, err
	}
	return &session{
		root:   root,
		flags:  flags,
		source: source,
		opts:   opts,
		stdin:  cmd.InOrStdin(),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}, nil
}

// useTUI reports whether the viewer can run: it needs a terminal on stdout
// and keyboard input that is not the document itself.
func (s *session) useTUI() bool {
	if !s.flags.tui {
		return false
	}
	if !cli.IsTerminal(s.stdout) {
		cli.NewPrinter(s.stderr).PrintWarning("--tui needs a terminal, printing instead")
		return false
	}
	if s.source == "-" {
		cli.NewPrinter(s.stderr).PrintWarning("--tui cannot read the document from stdin, printing instead")
		return false
	}
	return true
}

func (s *session) run(ctx context.Context, produce producer) (*stream.Stream, error) {
	width, height := cli.TerminalSize(s.stdout, s.opts.MaxWidth)
	if s.root.width > 0 {
		width = s.root.width
	}

	if s.useTUI() {
		return s.runTUI(ctx, width, height, produce)
	}
	return s.runPlain(ctx, width, produce)
}

func (s *session) newStream(ctx context.Context, target surface.Surface) (*stream.Stream, func(), error) {
	st, err := stream.New(target,
		stream.WithConfig(s.opts),
		stream.WithContext(ctx),
		stream.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := st.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
	}
	if s.root.metricsAddr == "" {
		return st, cleanup, nil
	}

	srv, err := serveMetrics(s.root.metricsAddr, st.Monitor())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return st, func() {
		cleanup()
		if err := srv.Close(); err != nil {
			slog.Warn("Failed to stop metrics server", "error", err)
		}
	}, nil
}

func (s *session) runPlain(ctx context.Context, width int, produce producer) (*stream.Stream, error) {
	canvas := surface.NewCanvas(width, 0)
	st, cleanup, err := s.newStream(ctx, canvas)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	err = produce(ctx, &streamFeed{ctx: ctx, stream: st})
	for st.Flush() > 0 {
		// deferred highlighting
	}

	view := canvas.View()
	if !cli.ColorEnabled(s.stdout) {
		view = canvas.Plain()
	}
	if view != "" {
		cli.NewPrinter(s.stdout).Println(view)
	}
	s.printSummary(st)
	return st, err
}

func (s *session) runTUI(ctx context.Context, width, height int, produce producer) (*stream.Stream, error) {
	theme, _ := styles.Lookup(s.opts.Theme)
	model := tui.New(ctx, width, height,
		tui.WithTitle(s.source),
		tui.WithTheme(theme),
		tui.WithLogger(slog.Default()),
	)
	st, cleanup, err := s.newStream(ctx, model)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	model.Attach(st)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model,
		tea.WithContext(runCtx),
		tea.WithInput(s.stdin),
		tea.WithOutput(s.stdout),
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// Closing the viewer stops the producer.
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		err := produce(gctx, programFeed{p})
		if gctx.Err() != nil {
			return nil
		}
		p.Send(tui.DoneMsg{Err: err})
		return nil
	})
	if err := g.Wait(); err != nil {
		return st, err
	}

	s.printSummary(st)
	return st, model.Err()
}

func (s *session) printSummary(st *stream.Stream) {
	if !s.flags.summary {
		return
	}
	tokens := st.Tokens()
	cli.NewPrinter(s.stderr).PrintSummary(cli.Summary{
		Source:     s.source,
		Renders:    st.Renders(),
		Tokens:     len(tokens),
		Incomplete: tokens.IncompleteCount(),
		Dropped:    len(st.Adapter().Dropped()),
		Errors:     st.ErrorStats(),
		Operations: st.Monitor().Summary(),
	})
}

// streamFeed drives a stream from the producer goroutine.
type streamFeed struct {
	ctx    context.Context
	stream *stream.Stream
}

func (f *streamFeed) Content(md string) {
	f.stream.SetContent(md)
}

func (f *streamFeed) Chunk(chunk string) {
	f.stream.Stream(chunk)
	f.stream.Flush()
}

func (f *streamFeed) Event(ev adapter.Event) {
	if err := f.stream.StreamEvent(f.ctx, ev); err != nil {
		slog.Debug("Event rendered as plain text", "type", ev.Type, "error", err)
	}
	f.stream.Flush()
}

// programFeed hands the input to the program goroutine, which owns the
// stream.
type programFeed struct {
	p *tea.Program
}

func (f programFeed) Content(md string) {
	f.p.Send(tui.ContentMsg(md))
}

func (f programFeed) Chunk(chunk string) {
	f.p.Send(tui.ChunkMsg(chunk))
}

func (f programFeed) Event(ev adapter.Event) {
	f.p.Send(tui.EventMsg(ev))
}
