package sanitizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_RemovesExecutableMarkup(t *testing.T) {
	inputs := []string{
		`<p>Hello <script>alert("x")</script>world</p>`,
		`<b onclick="steal()">bold</b> text`,
		`<a href="javascript:alert(1)">click</a>`,
		`<img src=x onerror=alert(1)>`,
		`<style>body{display:none}</style>chapter one`,
		`<iframe src="https://evil.example"></iframe>ok`,
	}

	for _, in := range inputs {
		out := Sanitize(in)
		lower := strings.ToLower(out)
		assert.NotContains(t, lower, "<script", in)
		assert.NotContains(t, lower, "onclick", in)
		assert.NotContains(t, lower, "onerror", in)
		assert.NotContains(t, lower, "javascript:", in)
		assert.NotContains(t, lower, "<iframe", in)
		assert.NotContains(t, lower, "<style", in)
	}
}

func TestSanitize_KeepsSafeFormatting(t *testing.T) {
	assert.Equal(t, "<p>Hello <b>world</b></p>", Sanitize(`<p>Hello <b onclick="x()">world</b><script>bad()</script></p>`))
	assert.Equal(t, "plain text", Sanitize("  plain text  "))
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		`<p>Hello <script>alert(1)</script><em>there</em></p>`,
		`Tom & Jerry <3`,
		`<ul><li onmouseover="x">one</li><li>two</li></ul>`,
		`"quoted" and 'single'`,
		"\xff\xfe bad utf8",
		"<p>\xc3\x28 broken</p>",
		``,
	}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.True(t, utf8.ValidString(once), in)
		assert.Equal(t, once, Sanitize(once), in)

		oncePlain := SanitizePlain(in)
		assert.True(t, utf8.ValidString(oncePlain), in)
		assert.Equal(t, oncePlain, SanitizePlain(oncePlain), in)
	}
}

func TestSanitize_DropsInvalidUTF8(t *testing.T) {
	assert.Equal(t, "bad utf8", Sanitize("\xff\xfe bad utf8"))
	assert.Equal(t, "bad utf8", SanitizePlain("\xff\xfe bad utf8"))
}

func TestSanitizePlain_StripsAllTags(t *testing.T) {
	assert.Equal(t, "Chapter One", SanitizePlain("<h1>Chapter <i>One</i></h1>"))
	assert.Equal(t, "", SanitizePlain("<script>alert(1)</script>"))
}
