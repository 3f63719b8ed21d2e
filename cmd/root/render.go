package root

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"charm.land/glamour/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/docker/mdstream/pkg/cli"
	"github.com/docker/mdstream/pkg/styles"
)

type renderFlags struct {
	session   sessionFlags
	stream    bool
	chunkSize int
	delay     time.Duration
	glamour   bool
}

func newRenderCmd(root *rootFlags) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render a markdown document",
		Long:  "Render a markdown document at once, or replay it in small chunks as an AI model would stream it",
		Example: `  mdstream render README.md
  mdstream render --stream --delay 30ms --tui README.md
  cat answer.md | mdstream render -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenderCommand(cmd, root, &flags, args)
		},
	}

	addSessionFlags(cmd, &flags.session)
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "Feed the document in chunks instead of all at once")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 16, "Number of characters per chunk with --stream")
	cmd.Flags().DurationVar(&flags.delay, "delay", 20*time.Millisecond, "Pause between chunks with --stream")
	cmd.Flags().BoolVar(&flags.glamour, "glamour", false, "Also print the document rendered by glamour, for comparison")

	return cmd
}

func runRenderCommand(cmd *cobra.Command, root *rootFlags, flags *renderFlags, args []string) error {
	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	md, err := readSource(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, root, flags.session, source)
	if err != nil {
		return err
	}

	produce := staticProducer(md)
	if flags.stream {
		produce = chunkProducer(md, flags.chunkSize, flags.delay)
	}

	out := cli.NewPrinter(cmd.OutOrStdout())
	if flags.glamour {
		out.PrintHeader("mdstream")
	}
	st, err := s.run(cmd.Context(), produce)
	if err != nil {
		return err
	}

	if flags.glamour {
		out.PrintHeader("glamour")
		rendered, err := renderGlamour(md, s.opts.Theme, st.Engine().Width())
		if err != nil {
			return err
		}
		if !cli.ColorEnabled(cmd.OutOrStdout()) {
			rendered = ansi.Strip(rendered)
		}
		out.Print(rendered)
	}
	return nil
}

func readSource(stdin io.Reader, source string) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", source, err)
	}
	return string(data), nil
}

func staticProducer(md string) producer {
	return func(_ context.Context, f feed) error {
		f.Content(md)
		return nil
	}
}

func chunkProducer(md string, size int, delay time.Duration) producer {
	return func(ctx context.Context, f feed) error {
		for _, chunk := range splitChunks(md, size) {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			f.Chunk(chunk)
		}
		return nil
	}
}

// splitChunks cuts s into pieces of at most size runes.
func splitChunks(s string, size int) []string {
	if size <= 0 {
		return []string{s}
	}
	var chunks []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func renderGlamour(md, theme string, width int) (string, error) {
	t, ok := styles.Lookup(theme)
	if !ok {
		t = styles.Default()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(t.Markdown),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating glamour renderer: %w", err)
	}
	return r.Render(md)
}
