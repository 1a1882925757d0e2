// Package dialplan decides how an inbound call is greeted based on the
// caller's E.164 number.
package dialplan

import "strings"

const (
	LangItalian = "it-IT"
	LangEnglish = "en-US"
)

// LanguageFor returns "it-IT" for Italian (+39) callers, else "en-US".
func LanguageFor(e164From string) string {
	if strings.HasPrefix(strings.TrimSpace(e164From), "+39") {
		return LangItalian
	}
	return LangEnglish
}

// IntroTexts returns the localized intro and ready prompts for a language.
func IntroTexts(lang string) (intro, ready string) {
	if strings.HasPrefix(lang, "it") {
		return "Benvenuto in Lobbi del tuo condominio. Sto verificando l'accesso.",
			"Quando sei pronto, puoi iniziare a parlare."
	}
	return "Welcome to your building Lobbi. Checking access.",
		"Okay, you can start talking."
}
