package styles

// Palette holds the hex colors a theme is built from.
type Palette struct {
	Accent        string
	Muted         string
	BackgroundAlt string
	Border        string
	TextPrimary   string
	TextSecondary string
	Success       string
	Error         string
	Warning       string
	Info          string

	// Chroma token colors
	ChromaText        string
	ChromaError       string
	ChromaErrorBg     string
	ChromaComment     string
	ChromaPreproc     string
	ChromaKeyword     string
	ChromaReserved    string
	ChromaNamespace   string
	ChromaType        string
	ChromaOperator    string
	ChromaPunctuation string
	ChromaBuiltin     string
	ChromaTag         string
	ChromaAttribute   string
	ChromaDecorator   string
	ChromaFunction    string
	ChromaNumber      string
	ChromaString      string
	ChromaEscape      string
	ChromaDeleted     string
	ChromaSubheading  string
	ChromaBackground  string
}

// Tokyo Night-inspired palette
var darkPalette = Palette{
	Accent:        "#7AA2F7",
	Muted:         "#8B95C1",
	BackgroundAlt: "#24283B",
	Border:        "#6B75A8",
	TextPrimary:   "#C0CAF5",
	TextSecondary: "#9AA5CE",
	Success:       "#9ECE6A",
	Error:         "#F7768E",
	Warning:       "#E0AF68",
	Info:          "#7DCFFF",

	ChromaText:        "#C0CAF5",
	ChromaError:       "#F1F1F1",
	ChromaErrorBg:     "#F05B5B",
	ChromaComment:     "#676767",
	ChromaPreproc:     "#FF875F",
	ChromaKeyword:     "#00AAFF",
	ChromaReserved:    "#FF5FD2",
	ChromaNamespace:   "#FF5F87",
	ChromaType:        "#6E6ED8",
	ChromaOperator:    "#EF8080",
	ChromaPunctuation: "#E8E8A8",
	ChromaBuiltin:     "#FF8EC7",
	ChromaTag:         "#B083EA",
	ChromaAttribute:   "#7A7AE6",
	ChromaDecorator:   "#FFFF87",
	ChromaFunction:    "#00D787",
	ChromaNumber:      "#6EEFC0",
	ChromaString:      "#C69669",
	ChromaEscape:      "#AFFFD7",
	ChromaDeleted:     "#FD5B5B",
	ChromaSubheading:  "#777777",
	ChromaBackground:  "#373737",
}

// Tokyo Night Day-inspired palette
var lightPalette = Palette{
	Accent:        "#2E7DE9",
	Muted:         "#6172B0",
	BackgroundAlt: "#E1E2E7",
	Border:        "#A8AECB",
	TextPrimary:   "#3760BF",
	TextSecondary: "#6172B0",
	Success:       "#587539",
	Error:         "#F52A65",
	Warning:       "#8C6C3E",
	Info:          "#007197",

	ChromaText:        "#3760BF",
	ChromaError:       "#FFFFFF",
	ChromaErrorBg:     "#C64343",
	ChromaComment:     "#848CB5",
	ChromaPreproc:     "#B15C00",
	ChromaKeyword:     "#9854F1",
	ChromaReserved:    "#9854F1",
	ChromaNamespace:   "#007197",
	ChromaType:        "#2E7DE9",
	ChromaOperator:    "#006A83",
	ChromaPunctuation: "#6172B0",
	ChromaBuiltin:     "#B15C00",
	ChromaTag:         "#F52A65",
	ChromaAttribute:   "#8C6C3E",
	ChromaDecorator:   "#8C6C3E",
	ChromaFunction:    "#2E7DE9",
	ChromaNumber:      "#B15C00",
	ChromaString:      "#587539",
	ChromaEscape:      "#007197",
	ChromaDeleted:     "#C64343",
	ChromaSubheading:  "#848CB5",
	ChromaBackground:  "#D0D5E3",
}
