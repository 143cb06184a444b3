// Package lang supplies user-facing strings by key.
package lang

import (
	_ "embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed en.yaml
var english []byte

// Message keys.
const (
	InvalidTag                = "invalidTag"
	TagSet                    = "tagSet"
	TagFailed                 = "tagFailed"
	TagLookup                 = "tagLookup"
	TagLookupMains            = "tagLookupMains"
	TagNotFound               = "tagNotFound"
	MainsPrompt               = "mainsPrompt"
	MainsPromptPlain          = "mainsPromptPlain"
	MainsPlaceholder          = "mainsPlaceholder"
	DisambiguationPrompt      = "disambiguationPrompt"
	DisambiguationPlaceholder = "disambiguationPlaceholder"
	MainsUpdated              = "mainsUpdated"
	MainsFailed               = "mainsFailed"
	TooManyMains              = "tooManyMains"
	InvalidSelection          = "invalidSelection"
	SelectionExpired          = "selectionExpired"
	BotNotFunctional          = "botNotFunctional"
	NotAdmin                  = "notAdmin"
	ReconcileDone             = "reconcileDone"
	ReconcileFailed           = "reconcileFailed"
	GuildOnly                 = "guildOnly"
	InfoChannelIntro          = "infoChannelIntro"
	UnknownBadges             = "unknownBadges"
	MissingBadgeAssets        = "missingBadgeAssets"
	HierarchyInvalid          = "hierarchyInvalid"
	HierarchyCheckFailed      = "hierarchyCheckFailed"
	ReconcileErrors           = "reconcileErrors"
	ReconcileError            = "reconcileError"
)

// Data carries template parameters.
type Data = map[string]interface{}

// Lang looks up localized messages.
type Lang struct {
	bundle *i18n.Bundle
}

// New loads the bundled message files.
func New() (*Lang, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	if _, err := bundle.ParseMessageFileBytes(english, "en.yaml"); err != nil {
		return nil, errors.Wrap(err, "parse en.yaml")
	}
	return &Lang{bundle: bundle}, nil
}

// MustNew is like New but panics if the bundled messages are broken.
func MustNew() *Lang {
	l, err := New()
	if err != nil {
		panic(err)
	}
	return l
}

// Get returns the message for key in the default language.
func (l *Lang) Get(key string, data Data) string {
	return l.GetFor("", key, data)
}

// GetFor returns the message for key in the given locale, falling back to
// English, and to the key itself when no message exists.
func (l *Lang) GetFor(locale string, key string, data Data) string {
	localizer := i18n.NewLocalizer(l.bundle, locale, language.English.String())
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}
