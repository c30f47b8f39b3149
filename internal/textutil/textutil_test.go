package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", Slugify("Acme Corp"))
	assert.Equal(t, "acme-corp", Slugify("  Acme -- Corp!  "))
	assert.Equal(t, "v2-launch", Slugify("V2 Launch"))
	assert.Equal(t, "", Slugify("***"))
	assert.Equal(t, "", Slugify(""))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Slow, manual onboarding; a risk.", 4)
	assert.Equal(t, []string{"slow", "manual", "onboarding", "risk"}, tokens)

	assert.Empty(t, Tokenize("a b c", 2))
	assert.Equal(t, []string{"ab", "cd"}, Tokenize("ab-cd", 2))
}

func TestTokenSet(t *testing.T) {
	set := TokenSet([]string{"one", "two", "one"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "one")
	assert.Contains(t, set, "two")
}
