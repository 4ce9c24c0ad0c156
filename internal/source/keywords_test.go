package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		title string
		adult bool
		want  []string
	}{
		{"plain title", "Epic Desert Sunset View", false, []string{"epic", "desert", "sunset", "view"}},
		{"stopwords removed", "The view of the lake at dawn", false, []string{"view", "lake", "dawn"}},
		{"punctuation splits", "Snow-capped peaks [3840x2160] (OC)!", false, []string{"snow", "capped", "peaks", "3840x2160", "oc"}},
		{"duplicates collapse", "Blue blue BLUE sky", false, []string{"blue", "sky"}},
		{"adult tag", "Beach", true, []string{"beach", AdultTag}},
		{"adult tag not doubled", "NSFW beach", true, []string{"nsfw", "beach"}},
		{"empty title", "", false, []string{}},
		{"empty title adult", "  ", true, []string{AdultTag}},
		{"unicode letters kept apart", "Café night", false, []string{"caf", "night"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Keywords(tc.title, tc.adult))
		})
	}
}

func TestTaggedKeywordsUsesGivenTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"beach", "adult"}, TaggedKeywords("Beach", true, "adult"))
	assert.Equal(t, []string{"adult", "beach"}, TaggedKeywords("Adult beach", true, "adult"))
	assert.Equal(t, []string{"beach"}, TaggedKeywords("Beach", false, "adult"))
	assert.Equal(t, []string{"beach"}, TaggedKeywords("Beach", true, ""))
}
