// Package lang maps the locale-style tags used for speech recognition (BCP-47)
// to the generic codes the translation service expects. The two standards
// disagree most visibly on Chinese, so the table is maintained by hand.
package lang

import "sort"

// Source is the language admins enter nouns in.
const Source = "en-US"

var speechToTranslate = map[string]string{
	"af-ZA":       "af",
	"id-ID":       "id",
	"ms-MY":       "ms",
	"ca-ES":       "ca",
	"cs-CZ":       "cs",
	"da-DK":       "da",
	"de-DE":       "de",
	"en-US":       "en",
	"es-MX":       "es",
	"eu-ES":       "eu",
	"fil-PH":      "tl",
	"fr-FR":       "fr",
	"gl-ES":       "gl",
	"hr-HR":       "hr",
	"zu-ZA":       "zu",
	"is-IS":       "is",
	"it-IT":       "it",
	"lt-LT":       "lt",
	"hu-HU":       "hu",
	"nl-NL":       "nl",
	"nb-NO":       "nb",
	"pl-PL":       "pl",
	"pt-BR":       "pt",
	"ro-RO":       "ro",
	"sk-SK":       "sk",
	"sl-SI":       "sl",
	"fi-FI":       "fi",
	"sv-SE":       "sv",
	"vi-VN":       "vi",
	"tr-TR":       "tr",
	"el-GR":       "el",
	"bg-BG":       "bg",
	"ru-RU":       "ru",
	"sr-RS":       "sr",
	"uk-UA":       "uk",
	"he-IL":       "he",
	"ar-IL":       "ar",
	"fa-IR":       "fa",
	"hi-IN":       "hi",
	"th-TH":       "th",
	"ko-KR":       "ko",
	"ja-JP":       "ja",
	"cmn-Hans-CN": "zh-CN",
	"yue-Hant-HK": "zh-TW",
}

// TranslationCode returns the translation-service code for a speech tag.
func TranslationCode(speechTag string) (string, bool) {
	code, ok := speechToTranslate[speechTag]
	return code, ok
}

// IsSupported reports whether players may choose speechTag.
func IsSupported(speechTag string) bool {
	_, ok := speechToTranslate[speechTag]
	return ok
}

// Supported returns every supported speech tag, sorted.
func Supported() []string {
	tags := make([]string, 0, len(speechToTranslate))
	for tag := range speechToTranslate {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
