package stt

import (
	"strings"
	"unicode"
)

var punctuationMap = map[rune]rune{
	'，': ',', '。': '.', '！': '!', '？': '?', '、': ',',
	'：': ':', '；': ';', '（': '(', '）': ')',
	'“': '"', '”': '"', '‘': '\'', '’': '\'',
}

const basicPunctuation = `,.!?:;"'()`

// PostProcess keeps letters, digits, CJK ideographs and basic punctuation,
// maps full-width punctuation to ASCII and collapses whitespace.
func PostProcess(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := punctuationMap[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		switch {
		case unicode.Is(unicode.Han, r), unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(basicPunctuation, r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
