package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Configure loads the "default" domain for lang from the locales directory
func Configure(localesPath, lang string) {
	gotext.Configure(localesPath, strings.ToLower(lang), "default")
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

// Translate returns the message for msgID formatted with vars. Templates are
// stored pre-escaped for MarkdownV2; vars must be escaped by the caller.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
