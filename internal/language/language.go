package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto means "let the transcriber detect the spoken language".
const Auto = "auto"

// bibliographic ISO 639-2/B codes and English names that language.Parse does
// not resolve on its own.
var aliases = map[string]string{
	"fre":        "fr",
	"ger":        "de",
	"chi":        "zh",
	"dut":        "nl",
	"cze":        "cs",
	"gre":        "el",
	"per":        "fa",
	"rum":        "ro",
	"slo":        "sk",
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// Tag parses value into a BCP 47 tag. Empty, "auto", and unknown values
// return language.Und and false.
func Tag(value string) (language.Tag, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == Auto {
		return language.Und, false
	}
	if alias, ok := aliases[value]; ok {
		value = alias
	}
	value = strings.ReplaceAll(value, "_", "-")
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	base, confidence := tag.Base()
	if confidence == language.No || base.String() == "und" {
		return language.Und, false
	}
	return tag, true
}

// ToISO2 returns the two-letter code for value ("eng", "English", "en-US" all
// map to "en"). Languages without a two-letter code return their three-letter
// base; unknown values return "".
func ToISO2(value string) string {
	tag, ok := Tag(value)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// DisplayName returns the English name of the language, or "" when unknown.
func DisplayName(value string) string {
	tag, ok := Tag(value)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return display.English.Languages().Name(language.Make(base.String()))
}
