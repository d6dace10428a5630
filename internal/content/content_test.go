package content

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"punctuation and digits", "Hello, World! 2024", "hello-world-2024"},
		{"already a slug", "hello-world", "hello-world"},
		{"uppercase", "QUANT INTERVIEWS", "quant-interviews"},
		{"leading and trailing junk", "  --Breaking In--  ", "breaking-in"},
		{"symbol runs collapse", "C++ && Rust", "c-rust"},
		{"underscores are separators", "slow_burn", "slow-burn"},
		{"non-ascii letters are separators", "Café au lait", "caf-au-lait"},
		{"only symbols", "!!!", ""},
		{"empty", "", ""},
		{"tabs and newlines", "a\tb\nc", "a-b-c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.title))
		})
	}
}

func TestSlug_AlwaysURLSafe(t *testing.T) {
	safe := regexp.MustCompile(`^[a-z0-9-]*$`)
	titles := []string{
		"Hello, World! 2024",
		"¿Qué pasa?",
		"日本語のタイトル",
		"   ",
		"---",
		"A/B testing: 101 (part 2)",
		"Emoji 🚀 launch",
		"MiXeD CaSe nbsp",
	}

	for _, title := range titles {
		got := Slug(title)
		assert.Regexp(t, safe, got, "title %q", title)
		assert.False(t, strings.HasPrefix(got, "-"), "leading separator for %q", title)
		assert.False(t, strings.HasSuffix(got, "-"), "trailing separator for %q", title)
		assert.NotContains(t, got, "--", "doubled separator for %q", title)
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"three words in a paragraph", "<p>one two three</p>", 1},
		{"exactly 200 words", strings.Repeat("word ", 200), 1},
		{"201 words rounds up", strings.Repeat("word ", 201), 2},
		{"400 words", "<div>" + strings.Repeat("<b>word</b> ", 400) + "</div>", 2},
		{"markup does not count", `<img src="https://example.com/a.png"><br/>`, 1},
		{"empty content has a minimum", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadingTime(tt.content))
		})
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 3, WordCount("<p>one two three</p>"))
	assert.Equal(t, 4, WordCount("<h1>Title</h1>\n<p>body  with\ttabs</p>"))
	assert.Equal(t, 0, WordCount("<p></p>"))
	assert.Equal(t, 0, WordCount(""))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "one two three", StripTags("<p>one <em>two</em> three</p>"))
	assert.NotContains(t, StripTags("<script>alert(1)</script>text"), "alert")
}

func TestSanitize(t *testing.T) {
	t.Run("keeps formatting", func(t *testing.T) {
		in := "<h2>Heading</h2><p>Some <strong>bold</strong> text</p><ul><li>item</li></ul>"
		assert.Equal(t, in, Sanitize(in))
	})

	t.Run("drops scripts", func(t *testing.T) {
		out := Sanitize(`<p>hi</p><script>alert("x")</script>`)
		assert.Equal(t, "<p>hi</p>", out)
	})

	t.Run("drops event handlers", func(t *testing.T) {
		out := Sanitize(`<p onclick="steal()">hi</p>`)
		assert.Equal(t, "<p>hi</p>", out)
	})

	t.Run("adds rel to links", func(t *testing.T) {
		out := Sanitize(`<a href="https://example.com">x</a>`)
		assert.Contains(t, out, "noreferrer")
		assert.Contains(t, out, "nofollow")
		assert.Contains(t, out, `target="_blank"`)
	})
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"trims", []string{"  quant ", "careers"}, []string{"quant", "careers"}},
		{"drops empty", []string{"", "  ", "python"}, []string{"python"}},
		{"dedupes case-insensitively", []string{"Python", "python", "PYTHON", "c++"}, []string{"Python", "c++"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}
