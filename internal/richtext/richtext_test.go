package richtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findKind(frags []Fragment, kind Kind) (Fragment, bool) {
	for _, f := range frags {
		if f.Kind == kind {
			return f, true
		}
	}
	return Fragment{}, false
}

func TestParseKeepsAllowedAnchor(t *testing.T) {
	frags := Parse(`Check <a href='https://github.com/UmayarajKumar17' target='_self' onclick='steal()'>my GitHub</a> page`)

	link, ok := findKind(frags, KindLink)
	require.True(t, ok, "expected a link fragment in %+v", frags)
	assert.Equal(t, "https://github.com/UmayarajKumar17", link.Href)
	assert.Equal(t, "my GitHub", link.Text)

	rendered := HTML(frags)
	assert.Contains(t, rendered, `target="_blank" rel="noopener noreferrer"`)
	assert.NotContains(t, rendered, "onclick")
	assert.NotContains(t, rendered, "_self")
	assert.Contains(t, PlainText(frags), "Check my GitHub (https://github.com/UmayarajKumar17) page")
}

func TestParseDropsUnsafeLinks(t *testing.T) {
	for _, markup := range []string{
		`<a href="javascript:alert(1)">click</a>`,
		`<a href="data:text/html;base64,AAAA">click</a>`,
		`<a href="/relative">click</a>`,
		`<a>click</a>`,
	} {
		frags := Parse(markup)
		_, ok := findKind(frags, KindLink)
		assert.False(t, ok, "unexpected link for %q: %+v", markup, frags)
		assert.Equal(t, "click", PlainText(frags))
	}
}

func TestParseStripsScriptsAndUnknownTags(t *testing.T) {
	frags := Parse("<script>alert('x')</script>\n\nhello <span style=\"color:red\">world</span>")
	text := PlainText(frags)
	assert.NotContains(t, text, "alert")
	assert.Contains(t, text, "hello world")
	assert.NotContains(t, HTML(frags), "span")
}

func TestParseMarkdownBoldAndBreaks(t *testing.T) {
	frags := Parse("I know **Python** well\nand Go too")

	bold, ok := findKind(frags, KindBold)
	require.True(t, ok)
	assert.Equal(t, "Python", bold.Text)

	_, ok = findKind(frags, KindBreak)
	assert.True(t, ok, "expected a line break in %+v", frags)
	assert.Equal(t, "I know Python well\nand Go too", PlainText(frags))
}

func TestParseMarkdownLinkAndParagraphs(t *testing.T) {
	frags := Parse("First paragraph.\n\nSee [the repo](https://github.com/UmayarajKumar17).")

	link, ok := findKind(frags, KindLink)
	require.True(t, ok)
	assert.Equal(t, "the repo", link.Text)
	assert.Equal(t, "First paragraph.\n\nSee the repo (https://github.com/UmayarajKumar17).", PlainText(frags))
}

func TestParseEmpty(t *testing.T) {
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("   \n "))
}

func TestFromPlainEscapesMarkup(t *testing.T) {
	frags := FromPlain("<b>hi</b>\nthere")
	require.Len(t, frags, 3)
	assert.Equal(t, Fragment{Kind: KindText, Text: "<b>hi</b>"}, frags[0])
	assert.Equal(t, KindBreak, frags[1].Kind)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;<br>there", HTML(frags))
}

func TestHTMLEscapesLinkAttributes(t *testing.T) {
	out := HTML([]Fragment{{Kind: KindLink, Text: "x", Href: `https://a.dev/?q="><script>`}})
	assert.False(t, strings.Contains(out, `"><script>`), out)
}
