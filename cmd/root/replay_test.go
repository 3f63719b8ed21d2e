package root

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/adapter"
)

const sessionInput = `{"type":"start","metadata":{"model":"gpt-test"}}
{"type":"text-delta","content":"Let me "}
{"type":"text-delta","content":"check."}

{"type":"tool-call","tool_name":"read_file","tool_args":{"path":"go.mod"}}
{"type":"tool-result","tool_name":"read_file","tool_result":"module example"}
{"type":"thinking","content":"looks fine"}
not json
{"type":"complete","metadata":{"input_tokens":3,"output_tokens":5}}
`

func assertInOrder(t *testing.T, out string, want ...string) {
	t.Helper()
	pos := 0
	for _, w := range want {
		i := strings.Index(out[pos:], w)
		require.NotEqual(t, -1, i, "missing %q after offset %d in %q", w, pos, out)
		pos += i + len(w)
	}
}

func TestReplay(t *testing.T) {
	path := writeFile(t, "session.jsonl", sessionInput)
	stdout, _, err := run(t, "", "replay", path)
	require.NoError(t, err)

	assertInOrder(t, stdout,
		"Started", "gpt-test",
		"Let me check.",
		"read_file", `"path": "go.mod"`,
		"module example",
		"looks fine",
		"DECODE", "line 8",
		"Complete", "(3 in, 5 out tokens)",
	)
}

func TestReplayFilters(t *testing.T) {
	stdout, stderr, err := run(t, sessionInput, "replay", "--hide-tool-calls", "--hide-thinking", "--summary", "-")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Let me check.")
	assert.NotContains(t, stdout, "read_file")
	assert.NotContains(t, stdout, "looks fine")
	assert.Contains(t, stderr, "3 dropped events")
}

func TestReplayMissingFile(t *testing.T) {
	_, _, err := run(t, "", "replay", "nope.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening nope.jsonl")
}

func TestEventProducer(t *testing.T) {
	t.Parallel()

	f := &recordingFeed{}
	err := eventProducer(strings.NewReader(sessionInput), 0)(t.Context(), f)
	require.NoError(t, err)

	require.Len(t, f.events, 8)
	assert.Equal(t, adapter.EventStart, f.events[0].Type)
	assert.Equal(t, "gpt-test", f.events[0].Metadata.Model)
	assert.Equal(t, adapter.EventError, f.events[6].Type)
	assert.Equal(t, "DECODE", f.events[6].ErrorCode)
	assert.Equal(t, 5, f.events[7].Metadata.OutputTokens)
}
