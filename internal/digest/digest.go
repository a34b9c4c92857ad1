// Package digest carves the free-text output of the digest generator into
// titled article blocks. The input is produced by a generative process, not
// a machine, so the parser is heuristic and forgiving: missing sections
// default to empty, blocks without a recognizable title are dropped, and
// nothing here ever fails.
package digest

import (
	"html"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTitle is used when the document carries no recognizable heading.
	DefaultTitle = "Portfolio Digest"

	// defaultCitationTitle stands in for citation lines that are all URL.
	defaultCitationTitle = "Source"

	// untitledSentinel marks blocks whose title could not be extracted;
	// such blocks are filtered from the result.
	untitledSentinel = "Untitled Article"

	documentHeading = "Scout Pulse Portfolio Digest"
)

// Digest is the parsed result of one raw text document. CreatedAt is
// attached by the caller after parsing, never derived from the text.
type Digest struct {
	Title     string    `json:"title"`
	Articles  []Article `json:"articles"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Article is one titled section. Contents is pre-rendered markup, not raw
// text: bullet and paragraph conversion happens inline during parsing.
type Article struct {
	Title     string     `json:"title"`
	Contents  string     `json:"contents"`
	Citations []Citation `json:"citations"`
}

// Citation pairs a source title with its http(s) URL.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var (
	docTitleExpr = regexp.MustCompile(`(?m)^[ \t]*#*[ \t]*(` + documentHeading + `.*)$`)

	articleMarkExpr = regexp.MustCompile(`(?i)Article\s+\d+`)
	articleExpr     = regexp.MustCompile(`(?i)Article\s+\d+\s*[-–:]\s*([^\n]+)`)
	contentsExpr    = regexp.MustCompile(`(?i)Contents\s*\d*`)
	citationsExpr   = regexp.MustCompile(`(?i)Citations`)

	lineHashExpr   = regexp.MustCompile(`(?m)^#+[ \t]*`)
	inlineHashExpr = regexp.MustCompile(`(?m)[ \t]#+([ \t]|$)`)

	boldExpr   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicExpr = regexp.MustCompile(`\*([^*]+)\*`)

	citationURLExpr = regexp.MustCompile(`\((https?://[^\s)]+)\)`)
)

// Parse segments one fully-buffered digest document into a Digest. It is a
// pure computation: no I/O, no shared state, deterministic for a given
// input. Malformed input narrows the result rather than failing it.
func Parse(text string) Digest {
	// The document heading is matched before normalization strips its
	// leading hashes.
	title := DefaultTitle
	if m := docTitleExpr.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
	}

	normalized := normalize(text)

	articles := make([]Article, 0)
	for _, block := range splitBlocks(normalized) {
		article := parseBlock(block)
		if article.Title == untitledSentinel {
			continue
		}
		articles = append(articles, article)
	}

	return Digest{Title: title, Articles: articles}
}

// normalize strips carriage returns, soft hyphens, and markdown heading
// hashes. Hash stripping is deliberately lossy: any run of `#` adjacent to
// whitespace or end-of-line goes, not just heading markers. A `#` inside a
// URL touches no whitespace and survives.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "­", "")
	text = lineHashExpr.ReplaceAllString(text, "")
	text = inlineHashExpr.ReplaceAllString(text, "$1")
	return text
}

// splitBlocks cuts the text at every `Article <number>` occurrence. Text
// before the first marker is preamble, not a block.
func splitBlocks(text string) []string {
	marks := articleMarkExpr.FindAllStringIndex(text, -1)
	blocks := make([]string, 0, len(marks))
	for i, mark := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		block := strings.TrimSpace(text[mark[0]:end])
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func parseBlock(block string) Article {
	title := untitledSentinel
	if m := articleExpr.FindStringSubmatch(block); m != nil {
		title = strings.TrimSpace(m[1])
	}

	contents, citations := sections(block)

	return Article{
		Title:     title,
		Contents:  renderContents(contents),
		Citations: parseCitations(citations),
	}
}

// sections locates the Contents and Citations spans inside one block. The
// contents section runs from its marker to the citations marker or end of
// block; the citations section runs from its marker to end of block.
// Either may be absent, yielding the empty string.
func sections(block string) (contents, citations string) {
	citLoc := citationsExpr.FindStringIndex(block)

	if loc := contentsExpr.FindStringIndex(block); loc != nil {
		end := len(block)
		if citLoc != nil && citLoc[0] > loc[1] {
			end = citLoc[0]
		}
		contents = block[loc[1]:end]
	}
	if citLoc != nil {
		citations = block[citLoc[1]:]
	}
	return contents, citations
}

// renderContents converts the contents section to markup. Lines starting
// with a bullet glyph become list items, everything else a paragraph; all
// list items are gathered into a single list wrapper after the paragraphs,
// preserving line order. A section with no usable lines still yields the
// empty wrapper, never raw text.
func renderContents(section string) string {
	var paragraphs, items strings.Builder

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		text, bullet := splitBullet(line)
		text = formatInline(text)
		if bullet {
			items.WriteString("<li>" + text + "</li>")
		} else {
			paragraphs.WriteString("<p>" + text + "</p>")
		}
	}

	return paragraphs.String() + "<ul>" + items.String() + "</ul>"
}

// splitBullet classifies a line and strips its bullet glyph. The glyph is
// only stripped when followed by whitespace, so a leading bold run like
// `**label:**` keeps both asterisks for inline formatting.
func splitBullet(line string) (text string, bullet bool) {
	if line == "" {
		return line, false
	}
	switch line[0] {
	case '-', '*':
		rest := line[1:]
		if trimmed := strings.TrimLeft(rest, " \t"); len(trimmed) < len(rest) {
			return trimmed, true
		}
		return line, true
	}
	if strings.HasPrefix(line, "•") {
		rest := strings.TrimPrefix(line, "•")
		return strings.TrimLeft(rest, " \t"), true
	}
	return line, false
}

// formatInline escapes the line and applies the two inline substitutions
// the generator actually emits: `**x**` and `*x*`.
func formatInline(text string) string {
	text = html.EscapeString(text)
	text = boldExpr.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicExpr.ReplaceAllString(text, "<em>$1</em>")
	return text
}

// parseCitations extracts one citation per line carrying a parenthesized
// http(s) URL. The title is the line minus the URL span and any square
// brackets; lines without a URL yield nothing. Duplicates are kept and
// source line order is preserved.
func parseCitations(section string) []Citation {
	citations := make([]Citation, 0)

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := citationURLExpr.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}

		title := line[:m[0]] + line[m[1]:]
		title = strings.NewReplacer("[", "", "]", "").Replace(title)
		title = strings.TrimSpace(title)
		if title == "" {
			title = defaultCitationTitle
		}

		citations = append(citations, Citation{Title: title, URL: line[m[2]:m[3]]})
	}

	return citations
}
