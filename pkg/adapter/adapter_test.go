package adapter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/recovery"
)

type recorder struct {
	chunks []string
}

func (r *recorder) Stream(chunk string) {
	r.chunks = append(r.chunks, chunk)
}

func (r *recorder) String() string {
	return strings.Join(r.chunks, "")
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 12, 34, 56, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		valid bool
	}{
		{"missing type", Event{Content: "x"}, false},
		{"unknown type", Event{Type: "bogus"}, false},
		{"empty delta", Event{Type: EventTextDelta}, true},
		{"tool call without name", Event{Type: EventToolCall}, false},
		{"tool call", Event{Type: EventToolCall, ToolName: "read_file"}, true},
		{"tool result without result", Event{Type: EventToolResult, ToolName: "x"}, false},
		{"tool result from content", Event{Type: EventToolResult, Content: "ok"}, true},
		{"tool result", Event{Type: EventToolResult, ToolResult: 42.0}, true},
		{"error without message", Event{Type: EventError}, false},
		{"error with code", Event{Type: EventError, ErrorCode: "E42"}, true},
		{"empty thinking", Event{Type: EventThinking}, false},
		{"empty status", Event{Type: EventStatus, Status: StatusRunning}, false},
		{"step", Event{Type: EventStep, Content: "Planning"}, true},
		{"start", Event{Type: EventStart}, true},
		{"complete", Event{Type: EventComplete}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.event)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var ae *recovery.AdapterError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.event, ae.Event)
		})
	}
}

func TestShouldRender(t *testing.T) {
	t.Parallel()

	quiet := New(&recorder{}, Options{HideToolCalls: true})
	assert.False(t, quiet.ShouldRender(Event{Type: EventThinking}))
	assert.False(t, quiet.ShouldRender(Event{Type: EventReasoning}))
	assert.False(t, quiet.ShouldRender(Event{Type: EventToolCall}))
	assert.False(t, quiet.ShouldRender(Event{Type: EventToolResult}))
	assert.True(t, quiet.ShouldRender(Event{Type: EventTextDelta}))

	chatty := New(&recorder{}, DefaultOptions())
	assert.True(t, chatty.ShouldRender(Event{Type: EventThinking}))
	assert.True(t, chatty.ShouldRender(Event{Type: EventToolCall}))
}

func TestTruncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 50)
	assert.Equal(t, strings.Repeat("x", 10)+"...", FormatToolResult(long, 10))
	assert.Equal(t, "short", FormatToolResult("short", 10))
	assert.Equal(t, "héllo wörl...", Truncate("héllo wörld", 10))
	assert.Equal(t, long, Truncate(long, 0))

	a := New(&recorder{}, Options{MaxToolResultLength: 10})
	assert.Equal(t, strings.Repeat("x", 10)+"...", a.FormatToolResult(long))
}

func TestFormatToolResultKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42", FormatToolResult(42.0, 200))
	assert.Equal(t, "true", FormatToolResult(true, 200))
	assert.Empty(t, FormatToolResult(nil, 200))
	assert.Equal(t, "```json\n{\n  \"a\": 1\n}\n```", FormatToolResult(map[string]any{"a": 1}, 200))
	assert.Equal(t, "```json\n{\n  \"z\": 1,\n  \"a\": 2\n}\n```", FormatToolResult(json.RawMessage(`{"z":1,"a":2}`), 200))
	assert.Equal(t, "done", FormatToolResult(json.RawMessage(`"done"`), 200))
}

func TestFormatToolCallKeepsArgumentOrder(t *testing.T) {
	t.Parallel()

	out := FormatToolCall("read_file", json.RawMessage(`{"path":"main.go","offset":10,"limit":5}`))
	assert.Equal(t, "📖 **read_file**\n\n```json\n{\n  \"path\": \"main.go\",\n  \"offset\": 10,\n  \"limit\": 5\n}\n```", out)

	assert.Equal(t, "🔧 **frobnify**", FormatToolCall("frobnify", nil))
	assert.Equal(t, "💻 **shell**", FormatToolCall("shell", json.RawMessage(`{}`)))
	assert.Contains(t, FormatToolCall("search_web", map[string]any{"q": "go"}), `"q": "go"`)
}

func TestIcons(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "🔍", ToolIcon("GrepFiles"))
	assert.Equal(t, "🔧", ToolIcon("unknown_tool"))
	assert.Equal(t, "⏳", StatusIcon("pending"))
	assert.Equal(t, "🔄", StatusIcon("Running"))
	assert.Equal(t, "❌", StatusIcon("failed"))
	assert.Equal(t, "ℹ️", StatusIcon("whatever"))
}

func TestFormat(t *testing.T) {
	t.Parallel()

	a := New(&recorder{}, DefaultOptions())
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Type: EventTextDelta, Content: "raw **md"}, "raw **md"},
		{Event{Type: EventThinking, Content: "hmm\nwell"}, "\n\n> 💭 hmm\n> well\n\n"},
		{Event{Type: EventReasoning, Content: "because"}, "\n\n> 🧠 because\n\n"},
		{Event{Type: EventStatus, Status: StatusCompleted, Content: " Indexed "}, "\n\n✅ **Indexed**\n\n"},
		{Event{Type: EventStep, Status: StatusWarning, Content: "Slow"}, "\n\n⚠️ **Slow**\n\n"},
		{Event{Type: EventError, ErrorCode: "E42", Content: "boom"}, "\n\n❌ **Error** `E42`: boom\n\n"},
		{Event{Type: EventError, Content: "boom"}, "\n\n❌ **Error**: boom\n\n"},
		{Event{Type: EventStart, Metadata: &Metadata{Model: "gpt"}}, "\n\n🚀 **Started** `gpt`\n\n"},
		{Event{Type: EventComplete, Metadata: &Metadata{InputTokens: 3, OutputTokens: 4}}, "\n\n🎉 **Complete** (3 in, 4 out tokens)\n\n"},
		{Event{Type: EventToolResult, ToolName: "ls", Content: "a b"}, "\n\n✅ **ls**: a b\n\n"},
	}
	for _, tt := range tests {
		out, err := a.Format(tt.event)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out, string(tt.event.Type))

		again, err := a.Format(tt.event)
		require.NoError(t, err)
		assert.Equal(t, out, again, "formatting is deterministic")
	}
}

func TestTimestamps(t *testing.T) {
	t.Parallel()

	a := New(&recorder{}, Options{RenderTimestamps: true}, WithClock(fixedClock))

	out, err := a.Format(Event{Type: EventStart})
	require.NoError(t, err)
	assert.Equal(t, "\n\n🚀 **Started**\n\n", out, "events without a timestamp are not stamped with the clock")

	stamped := Event{Type: EventStart, Metadata: &Metadata{Timestamp: time.Date(2026, 1, 1, 8, 0, 1, 0, time.UTC)}}
	out, err = a.Format(stamped)
	require.NoError(t, err)
	assert.Contains(t, out, "`08:00:01`")

	delta, err := a.Format(Event{Type: EventTextDelta, Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", delta)
}

func TestConversationScenario(t *testing.T) {
	t.Parallel()

	sink := &recorder{}
	a := New(sink, DefaultOptions())

	events := []Event{
		{Type: EventStart},
		{Type: EventTextDelta, Content: "Let me "},
		{Type: EventTextDelta, Content: "check."},
		{Type: EventToolCall, ToolName: "read_file", ToolArgs: json.RawMessage(`{"path":"go.mod"}`)},
		{Type: EventToolResult, ToolName: "read_file", ToolResult: "module example"},
		{Type: EventTextDelta, Content: "Done."},
		{Type: EventComplete},
	}
	for _, ev := range events {
		require.NoError(t, a.ProcessEvent(ev))
	}

	out := sink.String()
	order := []string{"🚀 **Started**", "Let me check.", "📖 **read_file**", `"path": "go.mod"`, "✅ **read_file**: module example", "Done.", "🎉 **Complete**"}
	pos := 0
	for _, want := range order {
		i := strings.Index(out[pos:], want)
		require.NotEqual(t, -1, i, "missing %q after offset %d in %q", want, pos, out)
		pos += i + len(want)
	}
	assert.Empty(t, a.Dropped())
}

func TestDroppedEvents(t *testing.T) {
	t.Parallel()

	b := bus.New()
	sink := &recorder{}
	a := New(sink, Options{HideToolCalls: true}, WithBus(b), WithClock(fixedClock), WithAuditSize(2))

	require.NoError(t, a.ProcessEvent(Event{Type: EventThinking, Content: "secret"}))
	require.NoError(t, a.ProcessEvent(Event{Type: EventToolCall, ToolName: "x"}))

	err := a.ProcessEvent(Event{Type: "nope"})
	var ae *recovery.AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, recovery.CodeAdapter, recovery.CodeOf(err))

	assert.Empty(t, sink.chunks)

	dropped := a.Dropped()
	require.Len(t, dropped, 2, "audit is bounded")
	assert.Equal(t, EventToolCall, dropped[0].Event.Type)
	assert.Equal(t, "filtered", dropped[0].Reason)
	assert.Contains(t, dropped[1].Reason, "unknown event type")
	assert.Equal(t, fixedClock(), dropped[1].Time)

	assert.Len(t, b.History(DroppedEvent), 3)
}

func TestPlainContentFeedsTextFallback(t *testing.T) {
	t.Parallel()

	err := Validate(Event{Type: EventToolResult, ToolName: "x", Content: ""})
	_, ok := recovery.TextFallback(err)
	assert.False(t, ok)

	err = &recovery.AdapterError{Event: Event{Type: EventStatus, Content: "plain words"}, Reason: "test"}
	text, ok := recovery.TextFallback(err)
	require.True(t, ok)
	assert.Equal(t, "plain words", text)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.HideToolCalls = true
	cfg.MaxToolResultLength = 20

	opts := OptionsFrom(cfg)
	assert.True(t, opts.ShowThinking)
	assert.True(t, opts.HideToolCalls)
	assert.Equal(t, 20, opts.MaxToolResultLength)
}

func TestEventJSON(t *testing.T) {
	t.Parallel()

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"tool-call","tool_name":"grep","tool_args":{"b":1,"a":2}}`), &ev))
	assert.Equal(t, EventToolCall, ev.Type)
	assert.Contains(t, FormatToolCall(ev.ToolName, ev.ToolArgs), "\"b\": 1,\n  \"a\": 2")
}
