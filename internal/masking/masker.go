// Package masking protects literal spans of a post (retweet prefix, hashtags,
// emoji) across a model round-trip.
//
// Masking replaces the retweet prefix and every hashtag occurrence with a
// placeholder. Emoji are left in place and only checked for presence after
// the round-trip. Restoration is best-effort: when the model rewrites or drops
// hashtags, a force-repair pass substitutes the original hashtags by position.
// None of the operations fail.
package masking

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	rtPlaceholder = "__RT__"
	htPrefix      = "__HT"
	htSuffix      = "__"
)

var (
	retweetRe = regexp.MustCompile(`^RT @[^\s:]+:`)
	hashtagRe = regexp.MustCompile(`#\S+`)
)

// State is the per-request mask map. It is owned by a single Mask/Restore
// cycle and must not be shared.
type State struct {
	retweet      string
	placeholders []string
	occurrences  []string
	emoji        []rune
}

// Retweet returns the masked retweet prefix, or "" when there was none.
func (s State) Retweet() string { return s.retweet }

// Occurrences returns every masked hashtag in order of appearance.
func (s State) Occurrences() []string {
	return append([]string(nil), s.occurrences...)
}

// Hashtags returns the original hashtags in order of first appearance with
// duplicates removed. This is the list used by force-repair.
func (s State) Hashtags() []string {
	return uniqueStrings(s.occurrences)
}

// Emoji returns the emoji found in the original text, in order.
func (s State) Emoji() []rune {
	return append([]rune(nil), s.emoji...)
}

// Empty reports whether nothing was masked or extracted.
func (s State) Empty() bool {
	return s.retweet == "" && len(s.occurrences) == 0 && len(s.emoji) == 0
}

// Mask substitutes the retweet prefix and every hashtag occurrence with
// placeholders and records the emoji of text. Placeholder indexes whose
// literal form already occurs in text are skipped.
func Mask(text string) (string, State) {
	var st State
	st.emoji = ExtractEmoji(text)

	masked := text
	if loc := retweetRe.FindStringIndex(masked); loc != nil {
		st.retweet = masked[loc[0]:loc[1]]
		masked = rtPlaceholder + masked[loc[1]:]
	}

	var b strings.Builder
	last, next := 0, 0
	for _, loc := range hashtagRe.FindAllStringIndex(masked, -1) {
		tag := masked[loc[0]:loc[1]]
		var ph string
		for {
			ph = htPrefix + strconv.Itoa(next) + htSuffix
			next++
			if !strings.Contains(text, ph) {
				break
			}
		}
		b.WriteString(masked[last:loc[0]])
		b.WriteString(ph)
		st.occurrences = append(st.occurrences, tag)
		st.placeholders = append(st.placeholders, ph)
		last = loc[1]
	}
	if len(st.occurrences) > 0 {
		b.WriteString(masked[last:])
		masked = b.String()
	}
	return masked, st
}

// Restore puts the protected spans of st back into output. Force-repair runs
// only when the model dropped or rewrote at least one hashtag placeholder;
// text adjacent to a kept placeholder is never touched.
func Restore(output string, st State) string {
	out := output
	if st.retweet != "" {
		if strings.Contains(out, rtPlaceholder) {
			out = strings.Replace(out, rtPlaceholder, st.retweet, 1)
		} else {
			out = st.retweet + " " + out
		}
	}
	lost := false
	for i, ph := range st.placeholders {
		if !strings.Contains(out, ph) {
			lost = true
			continue
		}
		out = strings.ReplaceAll(out, ph, st.occurrences[i])
	}
	if lost {
		out = ForceRepair(out, st.Hashtags())
	}
	return appendMissingEmoji(out, st.emoji)
}

// Unmask substitutes the placeholders of st that occur in text with their
// original spans. Unlike Restore it adds nothing that is absent, which suits
// free-text fields that merely quote the post.
func Unmask(text string, st State) string {
	if st.retweet != "" {
		text = strings.ReplaceAll(text, rtPlaceholder, st.retweet)
	}
	for i, ph := range st.placeholders {
		text = strings.ReplaceAll(text, ph, st.occurrences[i])
	}
	return text
}

// ForceRepair replaces the Nth hashtag-shaped token of text with the Nth
// entry of originals while one remains. Tokens past len(originals) are kept.
func ForceRepair(text string, originals []string) string {
	if len(originals) == 0 {
		return text
	}
	n := 0
	return hashtagRe.ReplaceAllStringFunc(text, func(tok string) string {
		if n >= len(originals) {
			return tok
		}
		repl := originals[n]
		n++
		return repl
	})
}

// ExtractHashtags returns the hashtags of text in order, duplicates removed.
func ExtractHashtags(text string) []string {
	return uniqueStrings(hashtagRe.FindAllString(text, -1))
}

func appendMissingEmoji(text string, emoji []rune) string {
	if len(emoji) == 0 {
		return text
	}
	have := make(map[rune]int)
	for _, r := range text {
		if IsEmoji(r) {
			have[r]++
		}
	}
	var missing []rune
	for _, r := range emoji {
		if have[r] > 0 {
			have[r]--
			continue
		}
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return text
	}
	return text + string(missing)
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
