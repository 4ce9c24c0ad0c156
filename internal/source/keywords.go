package source

import (
	"regexp"
	"strings"
)

// AdultTag is the default tag appended to the keywords of items flagged as adult content.
const AdultTag = "nsfw"

var nonWord = regexp.MustCompile(`\W`)

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "did": {},
	"do": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {}, "her": {},
	"his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "just": {}, "me": {}, "my": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"one": {}, "or": {}, "our": {}, "out": {}, "over": {}, "s": {}, "she": {}, "so": {},
	"some": {}, "t": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {}, "too": {},
	"up": {}, "us": {}, "very": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"you": {}, "your": {},
}

// Keywords derives tags from a title: lower-cased, non-word characters treated as separators,
// stopwords removed, duplicates dropped keeping first occurrence. AdultTag is appended when
// adult is set.
func Keywords(title string, adult bool) []string {
	return TaggedKeywords(title, adult, AdultTag)
}

// TaggedKeywords is Keywords with a caller-chosen adult tag.
func TaggedKeywords(title string, adult bool, adultTag string) []string {
	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(title), " "))
	seen := make(map[string]struct{}, len(words)+1)
	out := make([]string, 0, len(words)+1)
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	if adult && adultTag != "" {
		if _, dup := seen[adultTag]; !dup {
			out = append(out, adultTag)
		}
	}
	return out
}
