package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/scoutpulse/pulse/internal/digest"
	"github.com/scoutpulse/pulse/internal/outline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	headStyle  = lipgloss.NewStyle().Bold(true)
	citeStyle  = lipgloss.NewStyle().Faint(true)

	strongExpr    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emExpr        = regexp.MustCompile(`<em>(.*?)</em>`)
	paragraphExpr = regexp.MustCompile(`<p>(.*?)</p>`)
	itemExpr      = regexp.MustCompile(`<li>(.*?)</li>`)
	listExpr      = regexp.MustCompile(`</?ul>`)
)

// DigestView turns a parsed digest into terminal text. Article contents
// arrive as markup; each tag maps to its terminal equivalent (paragraphs
// to lines, list items to bullet lines, strong/em to styled runs).
type DigestView struct {
	plainText bool
}

// NewDigestView creates a view. Plain mode drops all styling.
func NewDigestView(usePlainText bool) *DigestView {
	return &DigestView{plainText: usePlainText}
}

// Render returns the whole digest as displayable text.
func (v *DigestView) Render(d digest.Digest) string {
	var b strings.Builder

	b.WriteString(v.styled(titleStyle, d.Title) + "\n")
	if !d.CreatedAt.IsZero() {
		b.WriteString(v.styled(citeStyle, d.CreatedAt.Format("Mon, 2 Jan 2006 15:04 MST")) + "\n")
	}

	for i, article := range d.Articles {
		b.WriteString("\n" + v.styled(headStyle, fmt.Sprintf("%d. %s", i+1, article.Title)) + "\n")
		if body := v.contents(article.Contents); body != "" {
			b.WriteString(body)
		}
		for _, c := range article.Citations {
			b.WriteString(v.styled(citeStyle, fmt.Sprintf("  › %s (%s)", c.Title, c.URL)) + "\n")
		}
	}
	return b.String()
}

func (v *DigestView) contents(markup string) string {
	var b strings.Builder
	for _, m := range paragraphExpr.FindAllStringSubmatch(markup, -1) {
		b.WriteString(v.inline(m[1]) + "\n")
	}
	for _, m := range itemExpr.FindAllStringSubmatch(markup, -1) {
		b.WriteString("  • " + v.inline(m[1]) + "\n")
	}
	return b.String()
}

// inline converts strong/em markup to styled runs and undoes the parser's
// HTML escaping.
func (v *DigestView) inline(markup string) string {
	if v.plainText {
		markup = strongExpr.ReplaceAllString(markup, "$1")
		markup = emExpr.ReplaceAllString(markup, "$1")
	} else {
		markup = strongExpr.ReplaceAllStringFunc(markup, func(s string) string {
			return headStyle.Render(strongExpr.FindStringSubmatch(s)[1])
		})
		markup = emExpr.ReplaceAllStringFunc(markup, func(s string) string {
			return lipgloss.NewStyle().Italic(true).Render(emExpr.FindStringSubmatch(s)[1])
		})
	}
	markup = listExpr.ReplaceAllString(markup, "")
	return html.UnescapeString(markup)
}

func (v *DigestView) styled(style lipgloss.Style, text string) string {
	if v.plainText {
		return text
	}
	return style.Render(text)
}

// OutlineView prints a heading tree indented by level.
func OutlineView(entries []outline.Entry, usePlainText bool) string {
	var b strings.Builder
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Level-1)
		line := fmt.Sprintf("%s%s", indent, e.Title)
		if !usePlainText {
			line = indent + headStyle.Render(e.Title)
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", line, citeStyleIf(usePlainText, fmt.Sprintf("L%d", e.Line))))
	}
	return b.String()
}

func citeStyleIf(plain bool, text string) string {
	if plain {
		return text
	}
	return citeStyle.Render(text)
}
