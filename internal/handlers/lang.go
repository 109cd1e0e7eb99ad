package handlers

import (
	"net/http"
	"strings"

	"github.com/shieldline/siteapi/types"
	"golang.org/x/text/language"
)

var langMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Arabic,
})

// requestLang picks "ar" or "en" from the lang query parameter, falling
// back to Accept-Language and then English.
func requestLang(r *http.Request) string {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang"))) {
	case types.LangArabic:
		return types.LangArabic
	case types.LangEnglish:
		return types.LangEnglish
	}

	header := r.Header.Get("Accept-Language")
	if header == "" {
		return types.LangEnglish
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return types.LangEnglish
	}
	_, index, confidence := langMatcher.Match(tags...)
	if confidence == language.No || index != 1 {
		return types.LangEnglish
	}
	return types.LangArabic
}
