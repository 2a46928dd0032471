package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStripsMarkupAndCase(t *testing.T) {
	raw := "<p>I Move In <b>Silence</b></p><br>Like the G in LASAGNA!"
	assert.Equal(t, "i move in silence like the g in lasagna", Normalize(raw))
}

func TestNormalizeLeetSubstitution(t *testing.T) {
	assert.Equal(t, "iostbae", Normalize("105784e"))
	assert.Equal(t, "silence", Normalize("sil3nce"))
}

func TestNormalizeLeetDigits(t *testing.T) {
	cases := map[string]string{
		"h0t":   "hot",
		"1ce":   "ice",
		"fr3sh": "fresh",
		"b4rs":  "bars",
		"5ick":  "sick",
		"7ight": "tight",
		"gr8":   "grb",
		"2pac":  "2pac", // 2 has no mapping
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), raw)
	}
}

func TestNormalizePunctuationAndWhitespace(t *testing.T) {
	assert.Equal(t, "cant stop wont stop", Normalize("  Can't   stop, won't\tstop!  "))
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("<p></p>"))
	assert.Equal(t, "", Normalize("!!! ... ???"))
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := "<li>Fir5t line</li><li>S3cond line</li>"
	first := Normalize(raw)
	assert.Equal(t, first, Normalize(raw))
	assert.Equal(t, "first line second line", first)
}
