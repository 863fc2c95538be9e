// Package i18n renders the bot's user-facing messages. Catalogs are YAML
// files embedded per language; Russian holds the station's original wording
// and English is the fallback pair.
package i18n

import (
	"embed"
	"io/fs"
	"log"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var bundle *i18n.Bundle

var localizer *i18n.Localizer

// Init loads the embedded catalogs and selects the active language.
func Init(lang string) {
	bundle = i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			log.Printf("Error parsing locale file %s: %v", f.Name(), err)
		}
	}

	localizer = i18n.NewLocalizer(bundle, lang)
}

// T translates a message by id, executing its template against data when
// given. Unknown ids come back verbatim so a missing translation never
// swallows a notification.
func T(messageID string, data ...map[string]any) string {
	if localizer == nil {
		Init("ru")
	}
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	msg, err := localizer.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

// SetLang switches the active language.
func SetLang(lang string) {
	Init(lang)
}
