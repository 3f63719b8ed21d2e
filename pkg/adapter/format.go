package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	defaultToolIcon = "🔧"
	truncationTail  = "..."
)

// toolIcons is matched in order against the lower-cased tool name.
var toolIcons = []struct {
	match []string
	icon  string
}{
	{[]string{"read", "view", "cat"}, "📖"},
	{[]string{"write", "edit", "patch", "create"}, "✏️"},
	{[]string{"search", "grep", "find", "query"}, "🔍"},
	{[]string{"shell", "bash", "exec", "command", "run"}, "💻"},
	{[]string{"fetch", "http", "web", "browse", "url"}, "🌐"},
	{[]string{"list", "ls", "dir", "tree"}, "📂"},
	{[]string{"delete", "remove", "rm"}, "🗑️"},
	{[]string{"think", "plan", "todo"}, "📝"},
	{[]string{"memory", "remember"}, "🧠"},
}

var statusIcons = map[string]string{
	StatusPending:   "⏳",
	StatusRunning:   "🔄",
	StatusCompleted: "✅",
	StatusFailed:    "❌",
	StatusInfo:      "ℹ️",
	StatusWarning:   "⚠️",
}

// ToolIcon returns the icon of the first group whose keyword appears in name.
func ToolIcon(name string) string {
	lower := strings.ToLower(name)
	for _, group := range toolIcons {
		for _, m := range group.match {
			if strings.Contains(lower, m) {
				return group.icon
			}
		}
	}
	return defaultToolIcon
}

// StatusIcon returns the icon of a status, ℹ️ for unknown ones.
func StatusIcon(status string) string {
	if icon, ok := statusIcons[strings.ToLower(status)]; ok {
		return icon
	}
	return statusIcons[StatusInfo]
}

// FormatToolCall renders a tool invocation: icon, bold name and the
// arguments as a JSON fence. Arguments given as raw JSON keep their key
// order.
func FormatToolCall(name string, args any) string {
	header := ToolIcon(name) + " **" + name + "**"
	body := formatArguments(args)
	if body == "" {
		return header
	}
	return header + "\n\n" + fence("json", body)
}

func formatArguments(args any) string {
	var raw []byte
	switch v := args.(type) {
	case nil:
		return ""
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		raw = b
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	kv := orderedmap.New[string, any]()
	if err := json.Unmarshal(raw, &kv); err == nil {
		if kv.Len() == 0 {
			return ""
		}
		formatted, err := json.MarshalIndent(kv, "", "  ")
		if err == nil {
			return string(formatted)
		}
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err == nil {
		return indented.String()
	}
	// not JSON
	return string(raw)
}

// FormatToolResult renders a tool result truncated to limit runes. Strings
// and other primitives are shown as text, objects and arrays as indented
// JSON in a fence. A limit of zero or less disables truncation.
func FormatToolResult(result any, limit int) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return Truncate(v, limit)
	case json.RawMessage:
		return formatRawResult(v, limit)
	case []byte:
		return formatRawResult(v, limit)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return Truncate(v.String(), limit)
	}

	formatted, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Truncate(fmt.Sprint(result), limit)
	}
	if s := string(formatted); !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return Truncate(s, limit)
	}
	return fence("json", Truncate(string(formatted), limit))
}

func formatRawResult(raw []byte, limit int) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return Truncate(s, limit)
		}
		return Truncate(string(raw), limit)
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		return Truncate(string(raw), limit)
	}
	return fence("json", Truncate(indented.String(), limit))
}

// Truncate cuts s to limit runes and appends "...". Strings within the
// limit are returned unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncationTail
}

func fence(lang, body string) string {
	ticks := "```"
	for strings.Contains(body, ticks) {
		ticks += "`"
	}
	return ticks + lang + "\n" + strings.TrimRight(body, "\n") + "\n" + ticks
}

// quote prefixes every line with a blockquote marker.
func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
