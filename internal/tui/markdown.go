package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Pre-compiled patterns for the HTML-to-ANSI pass.
var (
	codeBlockRegex = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	inlineCodeRe   = regexp.MustCompile(`<code>([^<]+)</code>`)
	headingRegex   = regexp.MustCompile(`<h[1-6][^>]*>(.*?)</h[1-6]>`)
	strongRegex    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex        = regexp.MustCompile(`<em>(.*?)</em>`)
	liRegex        = regexp.MustCompile(`<li>(.*?)</li>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]+>`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer turns assistant markdown into terminal output, with code
// fences highlighted through chroma.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Render converts content for a viewport of the given width. On any
// conversion failure the raw text is returned; a chat message must never be
// lost to a rendering bug.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	var codeBlocks []string
	result = codeBlockRegex.ReplaceAllStringFunc(result, func(m string) string {
		sub := codeBlockRegex.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		highlighted := highlightCode(decodeHTMLEntities(sub[2]), sub[1])
		codeWidth := width - 4
		if codeWidth < 20 {
			codeWidth = 20
		}
		styled := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1).
			Width(codeWidth).
			Render(strings.TrimRight(highlighted, "\n"))
		idx := len(codeBlocks)
		codeBlocks = append(codeBlocks, styled)
		return fmt.Sprintf("\n{{CODE_BLOCK_%d}}\n", idx)
	})

	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		sub := inlineCodeRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent2)).
			Render(decodeHTMLEntities(sub[1]))
	})

	bold := lipgloss.NewStyle().Bold(true)
	italic := lipgloss.NewStyle().Italic(true)
	heading := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))

	result = headingRegex.ReplaceAllStringFunc(result, func(m string) string {
		sub := headingRegex.FindStringSubmatch(m)
		return "\n" + heading.Render(htmlTagRegex.ReplaceAllString(sub[1], "")) + "\n"
	})
	result = strongRegex.ReplaceAllStringFunc(result, func(m string) string {
		sub := strongRegex.FindStringSubmatch(m)
		return bold.Render(sub[1])
	})
	result = emRegex.ReplaceAllStringFunc(result, func(m string) string {
		sub := emRegex.FindStringSubmatch(m)
		return italic.Render(sub[1])
	})
	result = liRegex.ReplaceAllStringFunc(result, func(m string) string {
		sub := liRegex.FindStringSubmatch(m)
		return "  • " + sub[1] + "\n"
	})

	result = strings.ReplaceAll(result, "<br />", "\n")
	result = strings.ReplaceAll(result, "</p>", "\n")
	result = htmlTagRegex.ReplaceAllString(result, "")
	result = decodeHTMLEntities(result)
	result = multiNewline.ReplaceAllString(result, "\n\n")

	for i, block := range codeBlocks {
		result = strings.Replace(result, fmt.Sprintf("{{CODE_BLOCK_%d}}", i), block, 1)
	}
	return strings.TrimSpace(result)
}

func highlightCode(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get("dracula")
	formatter := formatters.Get("terminal256")
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
	)
	return replacer.Replace(s)
}
