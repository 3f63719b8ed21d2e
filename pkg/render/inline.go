package render

import (
	"strings"

	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/token"
)

// inlineToken styles one inline token. Its content is already decoded, so
// markdown characters in it are printed as they are.
func inlineToken(th *styles.Theme, t token.Token) string {
	switch t.Kind {
	case token.KindStrong:
		return th.Bold.Render(t.Content)
	case token.KindEmphasis:
		return th.Italic.Render(t.Content)
	case token.KindStrikethrough:
		return th.Strike.Render(t.Content)
	case token.KindInlineCode:
		return th.Code.Render(t.Content)
	case token.KindMathInline:
		return th.Math.Render(substituteTeX(t.Content))
	case token.KindLink:
		return link(th, t.Content, t.Href)
	default:
		return t.Content
	}
}

func link(th *styles.Theme, text, href string) string {
	switch {
	case href == "" || href == text:
		if text == "" {
			text = href
		}
		return th.LinkText.Render(text)
	case text == "":
		return th.Link.Render(href)
	default:
		return th.LinkText.Render(text) + " " + th.Link.Render("("+href+")")
	}
}

// inlineMarkdown renders inline markdown elements: bold, italic, code,
// math, links and strikethrough. Block tokens keep this markup in their
// content.
func inlineMarkdown(th *styles.Theme, text string) string {
	if text == "" {
		return ""
	}

	if !hasInlineMarkdown(text) {
		return text
	}

	var out strings.Builder
	out.Grow(len(text) + 64)
	i := 0
	n := len(text)
	needsStyleRestore := false // restore the text style after styled content

	for i < n {
		if text[i] == '\\' && i+1 < n {
			out.WriteByte(text[i+1])
			i += 2
			continue
		}

		if text[i] == '`' {
			end := strings.Index(text[i+1:], "`")
			if end != -1 {
				code := text[i+1 : i+1+end]
				if math, ok := strings.CutPrefix(code, token.MathInlineMarker); ok {
					out.WriteString(th.Math.Render(substituteTeX(math)))
				} else {
					out.WriteString(th.Code.Render(code))
				}
				i = i + 1 + end + 1
				needsStyleRestore = true
				continue
			}
		}

		// **text** or __text__
		if i+1 < n && ((text[i] == '*' && text[i+1] == '*') || (text[i] == '_' && text[i+1] == '_')) {
			delim := text[i : i+2]
			end := strings.Index(text[i+2:], delim)
			if end != -1 {
				inner := text[i+2 : i+2+end]
				// ***text***
				if strings.HasPrefix(inner, "*") && strings.HasSuffix(inner, "*") && len(inner) >= 2 {
					out.WriteString(th.BoldItalic.Render(inlineMarkdown(th, inner[1:len(inner)-1])))
				} else {
					out.WriteString(th.Bold.Render(inlineMarkdown(th, inner)))
				}
				i = i + 2 + end + 2
				needsStyleRestore = true
				continue
			}
		}

		// *text* or _text_, but not _ in the middle of words
		if text[i] == '*' || (text[i] == '_' && (i == 0 || !isWord(text[i-1]))) {
			delim := text[i]
			end := -1
			for j := i + 1; j < n; j++ {
				if text[j] == delim {
					if delim == '_' && j+1 < n && isWord(text[j+1]) {
						continue
					}
					end = j
					break
				}
			}
			if end != -1 && end > i+1 {
				out.WriteString(th.Italic.Render(inlineMarkdown(th, text[i+1:end])))
				i = end + 1
				needsStyleRestore = true
				continue
			}
		}

		if i+1 < n && text[i] == '~' && text[i+1] == '~' {
			end := strings.Index(text[i+2:], "~~")
			if end != -1 {
				out.WriteString(th.Strike.Render(inlineMarkdown(th, text[i+2:i+2+end])))
				i = i + 2 + end + 2
				needsStyleRestore = true
				continue
			}
		}

		switch c := text[i]; c {
		case '[':
			closeBracket := findClosingBracket(text[i:])
			if closeBracket != -1 && i+closeBracket+1 < n && text[i+closeBracket+1] == '(' {
				linkText := text[i+1 : i+closeBracket]
				rest := text[i+closeBracket+2:]
				closeParen := strings.Index(rest, ")")
				if closeParen != -1 {
					out.WriteString(link(th, linkText, rest[:closeParen]))
					i = i + closeBracket + 2 + closeParen + 1
					needsStyleRestore = true
					continue
				}
			}
			fallthrough
		default:
			start := i
			for i < n && !isInlineMarker(text[i]) {
				i++
			}
			// an unmatched marker is printed literally
			if i == start {
				i++
			}
			if needsStyleRestore {
				th.Text.RenderTo(&out, text[start:i])
				needsStyleRestore = false
			} else {
				out.WriteString(text[start:i])
			}
		}
	}

	return out.String()
}

func findClosingBracket(text string) int {
	depth := 0
	for i, c := range text {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isWord(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func hasInlineMarkdown(text string) bool {
	for i := range len(text) {
		if isInlineMarker(text[i]) {
			return true
		}
	}
	return false
}

func isInlineMarker(b byte) bool {
	switch b {
	case '\\', '`', '*', '_', '~', '[':
		return true
	}
	return false
}
