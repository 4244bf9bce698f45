package tts

import (
	"strings"
	"unicode/utf8"
)

const (
	LanguageEnglish = "en"
	LanguageChinese = "zh"
)

// CleanText strips markdown emphasis markers and surrounding whitespace.
func CleanText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}

// DetectLanguage guesses en or zh from the share of ASCII runes. Short texts
// need a higher share to count as English.
func DetectLanguage(text string) string {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return LanguageChinese
	}
	ascii := 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			ascii++
		}
	}
	ratio := float64(ascii) / float64(total)
	threshold := 0.6
	if total < 10 {
		threshold = 0.8
	}
	if ratio > threshold {
		return LanguageEnglish
	}
	return LanguageChinese
}
