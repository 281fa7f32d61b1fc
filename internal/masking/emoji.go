package masking

// emojiRanges are the code point blocks treated as emoji.
var emojiRanges = [][2]rune{
	{0x1F1E6, 0x1F1FF}, // regional indicators
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport & map
	{0x1F700, 0x1F77F},
	{0x1F780, 0x1F7FF},
	{0x1F800, 0x1F8FF},
	{0x1F900, 0x1F9FF}, // supplemental symbols & pictographs
	{0x1FA70, 0x1FAFF},
	{0x2600, 0x26FF}, // misc symbols
	{0x2700, 0x27BF}, // dingbats
	{0x2B50, 0x2B55},
}

// IsEmoji reports whether r falls in one of the emoji blocks.
func IsEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// ExtractEmoji returns every emoji code point of text in order.
func ExtractEmoji(text string) []rune {
	var out []rune
	for _, r := range text {
		if IsEmoji(r) {
			out = append(out, r)
		}
	}
	return out
}
