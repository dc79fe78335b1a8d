// Package i18n serves the staff-facing strings. Dictionaries are nested YAML
// flattened to dotted keys, e.g. "errors.NETWORK_ERROR".
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLocale = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

type Dictionary struct {
	locale   string
	entries  map[string]string
	fallback *Dictionary
}

// Load returns the dictionary for locale. Unknown locales resolve to English;
// keys missing from a non-English dictionary fall back to English.
func Load(locale string) (*Dictionary, error) {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" || !Supported(locale) {
		locale = DefaultLocale
	}

	entries, err := readLocale(locale)
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{locale: locale, entries: entries}
	if locale != DefaultLocale {
		base, err := readLocale(DefaultLocale)
		if err != nil {
			return nil, err
		}
		dict.fallback = &Dictionary{locale: DefaultLocale, entries: base}
	}
	return dict, nil
}

// Supported lists embedded locales.
func Supported(locale string) bool {
	_, err := localeFS.Open("locales/" + locale + ".yaml")
	return err == nil
}

func Locales() []string {
	files, _ := localeFS.ReadDir("locales")
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, strings.TrimSuffix(f.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

func (d *Dictionary) Locale() string { return d.locale }

func (d *Dictionary) Lookup(key string) (string, bool) {
	if value, ok := d.entries[key]; ok && value != "" {
		return value, true
	}
	if d.fallback != nil {
		return d.fallback.Lookup(key)
	}
	return "", false
}

// Format looks up key and substitutes {name} placeholders. Missing keys
// return the key itself so gaps are visible rather than blank.
func (d *Dictionary) Format(key string, vars map[string]string) string {
	value, ok := d.Lookup(key)
	if !ok {
		return key
	}
	for name, v := range vars {
		value = strings.ReplaceAll(value, "{"+name+"}", v)
	}
	return value
}

func readLocale(locale string) (map[string]string, error) {
	raw, err := localeFS.ReadFile("locales/" + locale + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("i18n: locale %q not embedded: %w", locale, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("i18n: failed to parse locale %q: %w", locale, err)
	}

	entries := make(map[string]string)
	flatten("", tree, entries)
	return entries, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}
