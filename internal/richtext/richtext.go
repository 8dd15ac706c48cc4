// Package richtext keeps message formatting to bold text, line breaks and
// links. Provider output is parsed into fragments and never stored as markup.
package richtext

import (
	"io"
	"net/url"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
)

// Kind is the type of a Fragment.
type Kind string

const (
	KindText  Kind = "text"
	KindBold  Kind = "bold"
	KindBreak Kind = "break"
	KindLink  Kind = "link"
)

// Fragment is one run of formatted text.
type Fragment struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

var allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// Parse converts markdown mixed with inline HTML into fragments. Tags outside
// the allowed set are reduced to their text; script and style bodies are dropped.
func Parse(markup string) []Fragment {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.FlagsNone})
	rendered := markdown.ToHTML([]byte(markup), p, renderer)

	return fromHTML(string(rendered))
}

// FromPlain wraps untrusted plain text, keeping only its line breaks.
func FromPlain(text string) []Fragment {
	var b builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.lineBreak()
		}
		b.text(line)
	}
	return b.finish()
}

func fromHTML(doc string) []Fragment {
	var b builder
	z := html.NewTokenizer(strings.NewReader(doc))
	var anchors []bool

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return b.finish()
			}
			break
		}

		tok := z.Token()
		switch tt {
		case html.TextToken:
			if b.skip > 0 {
				continue
			}
			b.text(tok.Data)

		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.Data {
			case "script", "style":
				if tt == html.StartTagToken {
					b.skip++
				}
			case "br":
				b.lineBreak()
			case "b", "strong", "h1", "h2", "h3", "h4", "h5", "h6":
				if strings.HasPrefix(tok.Data, "h") {
					b.block(2)
				}
				b.bold++
			case "p", "div", "blockquote", "pre", "ul", "ol", "table":
				b.block(2)
			case "li", "tr":
				b.block(1)
				if tok.Data == "li" {
					b.text("• ")
				}
			case "a":
				if tt == html.SelfClosingTagToken {
					continue
				}
				opened := false
				if b.link == nil {
					if href, ok := safeHref(attr(tok, "href")); ok {
						b.openLink(href)
						opened = true
					}
				}
				anchors = append(anchors, opened)
			}

		case html.EndTagToken:
			switch tok.Data {
			case "script", "style":
				if b.skip > 0 {
					b.skip--
				}
			case "b", "strong", "h1", "h2", "h3", "h4", "h5", "h6":
				if b.bold > 0 {
					b.bold--
				}
				if strings.HasPrefix(tok.Data, "h") {
					b.block(2)
				}
			case "p", "div", "blockquote", "pre", "ul", "ol", "table":
				b.block(2)
			case "a":
				if len(anchors) == 0 {
					continue
				}
				opened := anchors[len(anchors)-1]
				anchors = anchors[:len(anchors)-1]
				if opened {
					b.closeLink()
				}
			}
		}
	}

	return b.finish()
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// safeHref accepts absolute http, https and mailto URLs only.
func safeHref(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if !allowedSchemes[scheme] {
		return "", false
	}
	if scheme != "mailto" && u.Host == "" {
		return "", false
	}
	return u.String(), true
}

type builder struct {
	frags []Fragment
	bold  int
	skip  int
	link  *Fragment
}

func (b *builder) text(s string) {
	if s == "" {
		return
	}
	s = strings.ReplaceAll(s, "\n", " ")

	if b.link != nil {
		b.link.Text += s
		return
	}

	if b.endsWithBreak() || len(b.frags) == 0 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return
		}
	}

	kind := KindText
	if b.bold > 0 {
		kind = KindBold
	}
	if n := len(b.frags); n > 0 && b.frags[n-1].Kind == kind {
		b.frags[n-1].Text += s
		return
	}
	b.frags = append(b.frags, Fragment{Kind: kind, Text: s})
}

func (b *builder) lineBreak() {
	if b.link != nil {
		b.link.Text += " "
		return
	}
	if len(b.frags) == 0 {
		return
	}
	b.trimTrailingSpace()
	b.frags = append(b.frags, Fragment{Kind: KindBreak})
}

// block ensures at least n breaks separate the next content from what came before.
func (b *builder) block(n int) {
	if b.link != nil || len(b.frags) == 0 {
		return
	}
	b.trimTrailingSpace()
	have := 0
	for i := len(b.frags) - 1; i >= 0 && b.frags[i].Kind == KindBreak; i-- {
		have++
	}
	for ; have < n; have++ {
		b.frags = append(b.frags, Fragment{Kind: KindBreak})
	}
}

func (b *builder) openLink(href string) {
	b.link = &Fragment{Kind: KindLink, Href: href}
}

func (b *builder) closeLink() {
	link := *b.link
	b.link = nil

	link.Text = strings.Join(strings.Fields(link.Text), " ")
	if link.Text == "" {
		link.Text = link.Href
	}
	b.frags = append(b.frags, link)
}

func (b *builder) endsWithBreak() bool {
	return len(b.frags) > 0 && b.frags[len(b.frags)-1].Kind == KindBreak
}

func (b *builder) trimTrailingSpace() {
	n := len(b.frags)
	if n == 0 {
		return
	}
	last := &b.frags[n-1]
	if last.Kind != KindText && last.Kind != KindBold {
		return
	}
	last.Text = strings.TrimRight(last.Text, " \t")
	if last.Text == "" {
		b.frags = b.frags[:n-1]
	}
}

func (b *builder) finish() []Fragment {
	if b.link != nil {
		b.closeLink()
	}
	for len(b.frags) > 0 && b.endsWithBreak() {
		b.frags = b.frags[:len(b.frags)-1]
	}
	b.trimTrailingSpace()
	if len(b.frags) == 0 {
		return nil
	}
	return b.frags
}

// PlainText flattens fragments. Links whose text differs from their target
// keep the target in parentheses.
func PlainText(frags []Fragment) string {
	var sb strings.Builder
	for _, f := range frags {
		switch f.Kind {
		case KindBreak:
			sb.WriteByte('\n')
		case KindLink:
			sb.WriteString(f.Text)
			if f.Text != f.Href && f.Href != "" {
				sb.WriteString(" (")
				sb.WriteString(f.Href)
				sb.WriteByte(')')
			}
		default:
			sb.WriteString(f.Text)
		}
	}
	return sb.String()
}

// HTML renders fragments as escaped markup. Links always open in a new tab
// without an opener reference.
func HTML(frags []Fragment) string {
	var sb strings.Builder
	for _, f := range frags {
		switch f.Kind {
		case KindText:
			sb.WriteString(html.EscapeString(f.Text))
		case KindBold:
			sb.WriteString("<strong>")
			sb.WriteString(html.EscapeString(f.Text))
			sb.WriteString("</strong>")
		case KindBreak:
			sb.WriteString("<br>")
		case KindLink:
			sb.WriteString(`<a href="`)
			sb.WriteString(html.EscapeString(f.Href))
			sb.WriteString(`" target="_blank" rel="noopener noreferrer">`)
			sb.WriteString(html.EscapeString(f.Text))
			sb.WriteString("</a>")
		}
	}
	return sb.String()
}
