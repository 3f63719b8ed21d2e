package plugin

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"

	"github.com/docker/mdstream/pkg/token"
)

// DefaultMaxContentLength caps the runes of a single token.
const DefaultMaxContentLength = 50_000

var (
	htmlTag = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)

	allowedSchemes = map[string]bool{
		"http":   true,
		"https":  true,
		"mailto": true,
	}
)

// Security strips terminal escapes and bidi overrides from the source,
// removes raw HTML from prose, drops links with unsafe schemes and caps the
// size of every token.
type Security struct {
	policy     *bluemonday.Policy
	maxContent int
}

func NewSecurity(maxContent int) *Security {
	if maxContent <= 0 {
		maxContent = DefaultMaxContentLength
	}
	return &Security{
		policy:     bluemonday.StrictPolicy(),
		maxContent: maxContent,
	}
}

func (s *Security) Name() string { return "security" }

func (s *Security) PreParse(src string, _ *Context) (string, []string, error) {
	var warnings []string
	if strings.ContainsRune(src, 0x1b) || strings.ContainsRune(src, 0x9b) {
		src = ansi.Strip(src)
		warnings = append(warnings, "security: stripped terminal escape sequences")
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 0x202a && r <= 0x202e, r >= 0x2066 && r <= 0x2069:
			return -1
		case r >= 0x80 && r <= 0x9f:
			return -1
		}
		return r
	}, src)
	if cleaned != src {
		warnings = append(warnings, "security: removed bidirectional or C1 control characters")
	}
	return cleaned, warnings, nil
}

func (s *Security) PostParse(tokens token.Sequence, _ *Context) (token.Sequence, []string, error) {
	var warnings []string
	for i := range tokens {
		t := &tokens[i]

		switch t.Kind {
		case token.KindText, token.KindHeading, token.KindBlockquote, token.KindListItem, token.KindStrong, token.KindEmphasis, token.KindStrikethrough:
			if htmlTag.MatchString(t.Content) {
				t.Content = s.sanitize(t.Content)
				t.Raw = ""
				warnings = append(warnings, fmt.Sprintf("security: removed HTML from %s token", t.Kind))
			}
		case token.KindTable:
			if clean, changed := s.sanitizeTable(t.Table); changed {
				t.Table = clean
				warnings = append(warnings, "security: removed HTML from table")
			}
		case token.KindLink:
			if !safeHref(t.Href) {
				warnings = append(warnings, fmt.Sprintf("security: dropped link with unsafe destination %q", t.Href))
				t.Href = ""
				t.Raw = ""
			}
		}

		if utf8.RuneCountInString(t.Content) > s.maxContent {
			t.Content = string([]rune(t.Content)[:s.maxContent]) + "..."
			t.Raw = ""
			warnings = append(warnings, fmt.Sprintf("security: truncated %s token to %d characters", t.Kind, s.maxContent))
		}
	}
	return tokens, warnings, nil
}

func (s *Security) sanitize(text string) string {
	return html.UnescapeString(s.policy.Sanitize(text))
}

// sanitizeTable returns a cleaned copy of t. The input is shared with the
// parser and is never modified.
func (s *Security) sanitizeTable(t *token.Table) (*token.Table, bool) {
	if t == nil {
		return nil, false
	}
	changed := false
	clean := func(cells []string) []string {
		out := slices.Clone(cells)
		for i, c := range out {
			if htmlTag.MatchString(c) {
				out[i] = s.sanitize(c)
				changed = true
			}
		}
		return out
	}
	cp := &token.Table{Header: clean(t.Header), Align: t.Align}
	for _, row := range t.Rows {
		cp.Rows = append(cp.Rows, clean(row))
	}
	return cp, changed
}

// safeHref accepts relative references and the allowed absolute schemes.
func safeHref(href string) bool {
	if href == "" {
		return true
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return u.Scheme == "" || allowedSchemes[strings.ToLower(u.Scheme)]
}
