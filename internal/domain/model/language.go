package model

// Language identifiers are shared with the sandbox service.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageJavaScript Language = "javascript"
	LanguageCPP        Language = "cpp"
	LanguageGo         Language = "go"
)

var supportedLanguages = map[Language]struct{}{
	LanguagePython:     {},
	LanguageJava:       {},
	LanguageJavaScript: {},
	LanguageCPP:        {},
	LanguageGo:         {},
}

func (l Language) IsSupported() bool {
	_, ok := supportedLanguages[l]
	return ok
}

// SupportedLanguages returns the fixed set in a stable order.
func SupportedLanguages() []Language {
	return []Language{LanguagePython, LanguageJava, LanguageJavaScript, LanguageCPP, LanguageGo}
}
