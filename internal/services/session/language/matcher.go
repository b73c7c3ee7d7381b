// Package language maps detected language names to ISO 639-1 codes and
// compares them with the system locale.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// iso6391 is the closed set of two-letter codes recognized by the matcher.
var iso6391 = []string{
	"aa", "ab", "ae", "af", "ak", "am", "an", "ar", "as", "av", "ay", "az",
	"ba", "be", "bg", "bh", "bi", "bm", "bn", "bo", "br", "bs", "ca", "ce",
	"ch", "co", "cr", "cs", "cu", "cv", "cy", "da", "de", "dv", "dz", "ee",
	"el", "en", "eo", "es", "et", "eu", "fa", "ff", "fi", "fj", "fo", "fr",
	"fy", "ga", "gd", "gl", "gn", "gu", "gv", "ha", "he", "hi", "ho", "hr",
	"ht", "hu", "hy", "hz", "ia", "id", "ie", "ig", "ii", "ik", "io", "is",
	"it", "iu", "ja", "jv", "ka", "kg", "ki", "kj", "kk", "kl", "km", "kn",
	"ko", "kr", "ks", "ku", "kv", "kw", "ky", "la", "lb", "lg", "li", "ln",
	"lo", "lt", "lu", "lv", "mg", "mh", "mi", "mk", "ml", "mn", "mr", "ms",
	"mt", "my", "na", "nb", "nd", "ne", "ng", "nl", "nn", "no", "nr", "nv",
	"ny", "oc", "oj", "om", "or", "os", "pa", "pi", "pl", "ps", "pt", "qu",
	"rm", "rn", "ro", "ru", "rw", "sa", "sc", "sd", "se", "sg", "si", "sk",
	"sl", "sm", "sn", "so", "sq", "sr", "ss", "st", "su", "sv", "sw", "ta",
	"te", "tg", "th", "ti", "tk", "tl", "tn", "to", "tr", "ts", "tt", "tw",
	"ty", "ug", "uk", "ur", "uz", "ve", "vi", "vo", "wa", "wo", "xh", "yi",
	"yo", "za", "zh", "zu",
}

// Names produced by the detector that differ from the CLDR English names.
var aliases = map[string]string{
	"mandarin": "zh",
	"bokmal":   "nb",
	"nynorsk":  "nn",
	"farsi":    "fa",
	"burmese":  "my",
	"kurdish":  "ku",
	"punjabi":  "pa",
	"uyghur":   "ug",
}

var namesToCodes = buildNameIndex()

func buildNameIndex() map[string]string {
	namer := display.English.Languages()
	idx := make(map[string]string, len(iso6391)+len(aliases))
	for _, code := range iso6391 {
		base, err := language.ParseBase(code)
		if err != nil {
			continue
		}
		name := namer.Name(base)
		if name == "" {
			continue
		}
		idx[strings.ToLower(name)] = code
	}
	for name, code := range aliases {
		if _, ok := idx[name]; !ok {
			idx[name] = code
		}
	}
	return idx
}

// CodeForName returns the ISO 639-1 code for an English language name.
func CodeForName(name string) (string, bool) {
	code, ok := namesToCodes[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// NameForCode returns the English display name for a two-letter code.
func NameForCode(code string) string {
	base, err := language.ParseBase(code)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(base)
}

type Matcher struct {
	system string
}

// NewMatcher builds a matcher for a POSIX or BCP 47 locale such as
// "en_US.UTF-8" or "pt-BR".
func NewMatcher(locale string) *Matcher {
	return &Matcher{system: ParseLocale(locale)}
}

// SystemLanguage returns the two-letter code the matcher compares against.
func (m *Matcher) SystemLanguage() string {
	return m.system
}

// IsSystemLanguage reports whether a detected language name corresponds to
// the system locale's language.
func (m *Matcher) IsSystemLanguage(name string) bool {
	if m == nil || m.system == "" {
		return false
	}
	code, ok := CodeForName(name)
	return ok && code == m.system
}

// ParseLocale reduces a locale string to its primary language subtag.
func ParseLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// SystemLocale reads the process locale from the usual environment
// variables, falling back to "en".
func SystemLocale(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := getenv(key); v != "" && ParseLocale(v) != "" {
			return v
		}
	}
	return "en"
}
