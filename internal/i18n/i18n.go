package i18n

import (
	"context"
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

var supported = []language.Tag{language.Arabic, language.English}

type localeContextKey struct{}
type localizerContextKey struct{}

// Catalog holds the loaded translations and the locale used when a request
// does not ask for one we support.
type Catalog struct {
	bundle   *i18n.Bundle
	matcher  language.Matcher
	fallback language.Tag
}

func NewCatalog(defaultLocale string) (*Catalog, error) {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("parse default locale: %w", err)
	}
	bundle := i18n.NewBundle(fallback)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range []string{"translations/active.ar.toml", "translations/active.en.toml"} {
		if _, err := bundle.LoadMessageFileFS(translationFS, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	// The first tag is what the matcher returns when nothing matches.
	tags := []language.Tag{fallback}
	for _, tag := range supported {
		if tag != fallback {
			tags = append(tags, tag)
		}
	}
	return &Catalog{bundle: bundle, matcher: language.NewMatcher(tags), fallback: fallback}, nil
}

// MatchLanguage picks the best supported locale for an Accept-Language value.
func (c *Catalog) MatchLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return c.fallback
	}
	tag, _ := language.MatchStrings(c.matcher, acceptLanguage)
	base, _ := tag.Base()
	return language.Make(base.String())
}

func (c *Catalog) WithLocale(ctx context.Context, tag language.Tag) context.Context {
	ctx = context.WithValue(ctx, localeContextKey{}, tag.String())
	return context.WithValue(ctx, localizerContextKey{}, i18n.NewLocalizer(c.bundle, tag.String()))
}

// Locale returns the request locale, or the catalog default.
func (c *Catalog) Locale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return c.fallback.String()
}

// T translates messageID. Unknown IDs come back unchanged.
func (c *Catalog) T(ctx context.Context, messageID string) string {
	return c.TData(ctx, messageID, nil)
}

func (c *Catalog) TData(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := c.localizer(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

func (c *Catalog) localizer(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return i18n.NewLocalizer(c.bundle, c.fallback.String())
}

// Translate localizes messageID with the localizer WithLocale stored in ctx.
// Without one the ID itself is returned.
func Translate(ctx context.Context, messageID string, data map[string]any) string {
	localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer)
	if !ok {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
