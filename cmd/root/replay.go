package root

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/docker/mdstream/pkg/adapter"
)

// maxEventLine bounds a single JSON line, tool results can be large.
const maxEventLine = 4 << 20

type replayFlags struct {
	session       sessionFlags
	delay         time.Duration
	hideToolCalls bool
	hideThinking  bool
}

func newReplayCmd(root *rootFlags) *cobra.Command {
	var flags replayFlags

	cmd := &cobra.Command{
		Use:   "replay <events.jsonl|->",
		Short: "Replay a recorded agent event stream",
		Long: `Replay a JSON lines file of agent events (text-delta, tool-call, tool-result,
thinking, status, error, start, complete...) through the event adapter`,
		Example: `  mdstream replay session.jsonl
  mdstream replay --tui --delay 50ms session.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayCommand(cmd, root, &flags, args[0])
		},
	}

	addSessionFlags(cmd, &flags.session)
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "Pause between events")
	cmd.Flags().BoolVar(&flags.hideToolCalls, "hide-tool-calls", false, "Do not render tool calls and results")
	cmd.Flags().BoolVar(&flags.hideThinking, "hide-thinking", false, "Do not render thinking and reasoning")

	return cmd
}

func runReplayCommand(cmd *cobra.Command, root *rootFlags, flags *replayFlags, source string) error {
	var r io.Reader = cmd.InOrStdin()
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("opening %s: %w", source, err)
		}
		defer f.Close()
		r = f
	}

	s, err := newSession(cmd, root, flags.session, source)
	if err != nil {
		return err
	}
	if flags.hideToolCalls {
		s.opts.HideToolCalls = true
	}
	if flags.hideThinking {
		s.opts.ShowThinking = false
	}

	_, err = s.run(cmd.Context(), eventProducer(r, flags.delay))
	return err
}

// eventProducer decodes one event per line. Blank lines are skipped and
// malformed ones are shown as error events so the replay keeps going.
func eventProducer(r io.Reader, delay time.Duration) producer {
	return func(ctx context.Context, f feed) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

		line := 0
		for scanner.Scan() {
			line++
			data := scanner.Bytes()
			if len(data) == 0 {
				continue
			}

			var ev adapter.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				slog.Warn("Skipping malformed event", "line", line, "error", err)
				ev = adapter.Event{
					Type:      adapter.EventError,
					ErrorCode: "DECODE",
					Content:   fmt.Sprintf("line %d: %v", line, err),
				}
			}

			if err := sleep(ctx, delay); err != nil {
				return err
			}
			f.Event(ev)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading events: %w", err)
		}
		return nil
	}
}
