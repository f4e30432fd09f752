package transcache

import "strings"

// LanguageNames maps language codes to human-readable names for AI prompts.
var LanguageNames = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fa": "Persian",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"zh": "Chinese",

	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"he_IL": "Hebrew (Israel)",
	"pt_BR": "Portuguese (Brazil)",
	"pt_PT": "Portuguese (Portugal)",
	"zh_CN": "Chinese (Simplified)",
	"zh_TW": "Chinese (Traditional)",
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the base language, then to the code itself.
func GetLanguageName(langCode string) string {
	code := NormalizeLocale(langCode)
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	if name, ok := LanguageNames[BaseLanguage(code)]; ok {
		return name
	}
	return langCode
}

// BaseLanguage extracts the lower-cased base language (e.g. "en" from "en_US").
func BaseLanguage(langCode string) string {
	base, _, _ := strings.Cut(NormalizeLocale(langCode), "_")
	return strings.ToLower(base)
}

// SameLanguage reports whether a and b name the same locale. Codes are
// compared case-insensitively after normalisation ("en-GB" ~ "en_gb"). A
// base code does not match its regional variants: "en" to "en_US" is still
// a localisation.
func SameLanguage(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(NormalizeLocale(a), NormalizeLocale(b))
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(langCode string) string {
	if RTLLanguages[BaseLanguage(langCode)] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(langCode string) bool {
	return GetDirection(langCode) == "rtl"
}

// NormalizeLocale converts a language code to the standard format (e.g., "es-ES" → "es_ES").
func NormalizeLocale(langCode string) string {
	return strings.ReplaceAll(langCode, "-", "_")
}

// ToHTMLLang converts a locale code to HTML lang attribute format (e.g., "es_ES" → "es-ES").
func ToHTMLLang(langCode string) string {
	return strings.ReplaceAll(langCode, "_", "-")
}
