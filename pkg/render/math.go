package render

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/token"
)

var texSymbols = map[string]string{
	`\alpha`: "α", `\beta`: "β", `\gamma`: "γ", `\delta`: "δ", `\epsilon`: "ε",
	`\zeta`: "ζ", `\eta`: "η", `\theta`: "θ", `\kappa`: "κ", `\lambda`: "λ",
	`\mu`: "μ", `\nu`: "ν", `\xi`: "ξ", `\pi`: "π", `\rho`: "ρ", `\sigma`: "σ",
	`\tau`: "τ", `\phi`: "φ", `\chi`: "χ", `\psi`: "ψ", `\omega`: "ω",
	`\Gamma`: "Γ", `\Delta`: "Δ", `\Theta`: "Θ", `\Lambda`: "Λ", `\Pi`: "Π",
	`\Sigma`: "Σ", `\Phi`: "Φ", `\Psi`: "Ψ", `\Omega`: "Ω",
	`\infty`: "∞", `\sum`: "∑", `\prod`: "∏", `\int`: "∫", `\oint`: "∮",
	`\partial`: "∂", `\nabla`: "∇", `\pm`: "±", `\mp`: "∓", `\times`: "×",
	`\div`: "÷", `\cdot`: "·", `\leq`: "≤", `\le`: "≤", `\geq`: "≥", `\ge`: "≥",
	`\neq`: "≠", `\ne`: "≠", `\approx`: "≈", `\equiv`: "≡", `\sim`: "∼",
	`\propto`: "∝", `\to`: "→", `\rightarrow`: "→", `\leftarrow`: "←",
	`\Rightarrow`: "⇒", `\Leftarrow`: "⇐", `\Leftrightarrow`: "⇔",
	`\leftrightarrow`: "↔", `\mapsto`: "↦", `\in`: "∈", `\notin`: "∉",
	`\subset`: "⊂", `\subseteq`: "⊆", `\supset`: "⊃", `\cup`: "∪", `\cap`: "∩",
	`\forall`: "∀", `\exists`: "∃", `\emptyset`: "∅", `\neg`: "¬",
	`\land`: "∧", `\lor`: "∨", `\ldots`: "…", `\cdots`: "⋯", `\dots`: "…",
	`\degree`: "°", `\angle`: "∠", `\perp`: "⊥", `\parallel`: "∥",
	`\quad`: "  ", `\qquad`: "    ", `\,`: " ", `\;`: " ", `\!`: "",
	`\left`: "", `\right`: "", `\{`: "{", `\}`: "}",
}

var (
	texReplacer = newTeXReplacer()

	texFrac    = regexp.MustCompile(`\\frac\{([^{}]*)\}\{([^{}]*)\}`)
	texSqrt    = regexp.MustCompile(`\\sqrt\{([^{}]*)\}`)
	texWrapper = regexp.MustCompile(`\\(?:text|mathrm|mathbf|mathit|operatorname|mathbb)\{([^{}]*)\}`)
	texSup     = regexp.MustCompile(`\^(\{[^{}]*\}|[0-9a-z+\-=()])`)
	texSub     = regexp.MustCompile(`_(\{[^{}]*\}|[0-9a-z+\-=()])`)

	superscripts = strings.NewReplacer(
		"0", "⁰", "1", "¹", "2", "²", "3", "³", "4", "⁴", "5", "⁵", "6", "⁶", "7", "⁷", "8", "⁸", "9", "⁹",
		"+", "⁺", "-", "⁻", "=", "⁼", "(", "⁽", ")", "⁾", "n", "ⁿ", "i", "ⁱ",
	)
	subscripts = strings.NewReplacer(
		"0", "₀", "1", "₁", "2", "₂", "3", "₃", "4", "₄", "5", "₅", "6", "₆", "7", "₇", "8", "₈", "9", "₉",
		"+", "₊", "-", "₋", "=", "₌", "(", "₍", ")", "₎", "a", "ₐ", "e", "ₑ", "i", "ᵢ", "j", "ⱼ", "n", "ₙ", "x", "ₓ",
	)
)

// newTeXReplacer orders commands longest first so \infty wins over \in.
func newTeXReplacer() *strings.Replacer {
	keys := make([]string, 0, len(texSymbols))
	for k := range texSymbols {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, texSymbols[k])
	}
	return strings.NewReplacer(pairs...)
}

// substituteTeX turns common TeX commands into their Unicode symbols.
// Anything it does not know is printed as written.
func substituteTeX(s string) string {
	s = texWrapper.ReplaceAllString(s, "$1")
	s = texFrac.ReplaceAllStringFunc(s, func(m string) string {
		parts := texFrac.FindStringSubmatch(m)
		return group(parts[1]) + "/" + group(parts[2])
	})
	s = texSqrt.ReplaceAllString(s, "√($1)")
	s = texReplacer.Replace(s)
	s = texSup.ReplaceAllStringFunc(s, func(m string) string {
		return script(m[1:], superscripts, "^")
	})
	s = texSub.ReplaceAllStringFunc(s, func(m string) string {
		return script(m[1:], subscripts, "_")
	})
	return s
}

// group parenthesizes a fraction operand made of more than one term.
func group(s string) string {
	if strings.ContainsAny(s, "+-*/ ") {
		return "(" + s + ")"
	}
	return s
}

// script converts a super/subscript when every rune has a Unicode form and
// keeps the TeX notation otherwise.
func script(arg string, r *strings.Replacer, marker string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(arg, "{"), "}")
	for _, c := range inner {
		if r.Replace(string(c)) == string(c) {
			if utf8.RuneCountInString(inner) == 1 {
				return marker + inner
			}
			return marker + "(" + inner + ")"
		}
	}
	return r.Replace(inner)
}

func renderMathBlock(th *styles.Theme, t token.Token, width int) string {
	body := strings.TrimRight(t.Content, "\n")
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = th.Math.Render(substituteTeX(strings.TrimSpace(l)))
	}

	// double border plus horizontal padding of two on each side
	inner := max(width-6, 1)
	box := th.MathBox.Render(wrap(strings.Join(lines, "\n"), inner))
	return label(th, "math", t.Incomplete) + "\n" + box
}

// label is the header line above boxed blocks.
func label(th *styles.Theme, name string, streaming bool) string {
	out := th.CodeLabel.Render(name)
	if streaming {
		out += " " + th.StreamingLabel.Render("● streaming")
	}
	return out
}
