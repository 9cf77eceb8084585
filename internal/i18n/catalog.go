// Package i18n provides the translated string catalog used by the intake flow.
//
// Templates are embedded YAML documents, one per locale, mapping keys to strings
// with named placeholders written as {name}.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Locale identifies one of the shipped translations.
type Locale string

const (
	// English is also the default locale of a freshly started flow.
	English Locale = "en"
	Russian Locale = "ru"
	Arabic  Locale = "ar"
)

// Default is the locale used before the user picks a language.
const Default = English

// Locales lists the supported locales in the order they are offered to users.
var Locales = []Locale{English, Russian, Arabic}

// ErrMissingTranslation is returned when a locale or key is absent from the catalog.
var ErrMissingTranslation = errors.New("i18n: missing translation")

// Params holds placeholder values substituted into a template.
type Params map[string]string

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog is an immutable locale -> key -> template mapping.
type Catalog struct {
	templates map[Locale]map[string]string
}

// ParseLocale maps a raw code onto a supported locale.
func ParseLocale(raw string) (Locale, bool) {
	code := Locale(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range Locales {
		if l == code {
			return l, true
		}
	}
	return "", false
}

// Load reads the embedded catalog for every supported locale.
func Load() (*Catalog, error) {
	c := &Catalog{templates: make(map[Locale]map[string]string, len(Locales))}
	for _, loc := range Locales {
		name := path.Join("locales", string(loc)+".yaml")
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", name, err)
		}
		entries := make(map[string]string)
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", name, err)
		}
		c.templates[loc] = entries
	}
	return c, nil
}

// New builds a catalog from in-memory templates.
func New(templates map[Locale]map[string]string) *Catalog {
	c := &Catalog{templates: make(map[Locale]map[string]string, len(templates))}
	for loc, entries := range templates {
		cp := make(map[string]string, len(entries))
		for k, v := range entries {
			cp[k] = v
		}
		c.templates[loc] = cp
	}
	return c
}

// Validate checks that every key is present for every supported locale.
// All gaps are reported in a single error wrapping ErrMissingTranslation.
func (c *Catalog) Validate(keys ...string) error {
	var missing []string
	for _, loc := range Locales {
		entries, ok := c.templates[loc]
		for _, key := range keys {
			if !ok {
				missing = append(missing, string(loc)+"/"+key)
				continue
			}
			if _, found := entries[key]; !found {
				missing = append(missing, string(loc)+"/"+key)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingTranslation, strings.Join(missing, ", "))
}

// Render formats the template for (locale, key) substituting {name} placeholders.
// Placeholders without a value are left untouched.
func (c *Catalog) Render(locale Locale, key string, params Params) (string, error) {
	entries, ok := c.templates[locale]
	if !ok {
		return "", fmt.Errorf("%w: locale %q", ErrMissingTranslation, locale)
	}
	tmpl, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
	}
	if len(params) == 0 {
		return tmpl, nil
	}
	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}

// MustRender is Render for keys already covered by Validate; it panics on a gap.
func (c *Catalog) MustRender(locale Locale, key string, params Params) string {
	s, err := c.Render(locale, key, params)
	if err != nil {
		panic(err)
	}
	return s
}
