// internal/i18n/i18n.go
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed locales/*.json
var locales embed.FS

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var instance *I18n
var once sync.Once

func Initialize(defaultLang string) error {
	var err error
	once.Do(func() {
		if defaultLang == "" {
			defaultLang = "en"
		}
		instance = &I18n{
			translations: make(map[string]map[string]string),
			defaultLang:  defaultLang,
		}
		err = instance.LoadTranslations()
	})
	return err
}

func (i *I18n) LoadTranslations() error {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("failed to list locales: %w", err)
	}

	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), ".json")

		data, err := locales.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", entry.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", entry.Name(), err)
		}

		i.mu.Lock()
		i.translations[lang] = translations
		i.mu.Unlock()
	}

	return nil
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if text, ok := i.lookup(lang, key); ok {
		return format(text, args)
	}
	if lang != i.defaultLang {
		if text, ok := i.lookup(i.defaultLang, key); ok {
			return format(text, args)
		}
	}

	// Return key if no translation found
	return key
}

func (i *I18n) lookup(lang, key string) (string, bool) {
	translations, ok := i.translations[lang]
	if !ok {
		return "", false
	}
	text, ok := translations[key]
	return text, ok
}

func format(text string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// Global functions
func T(lang, key string, args ...interface{}) string {
	if instance != nil {
		return instance.T(lang, key, args...)
	}
	return key
}

func GetSupportedLanguages() []string {
	if instance == nil {
		return []string{"en"}
	}

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	langs := make([]string, 0, len(instance.translations))
	for lang := range instance.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Match picks the best loaded catalogue for an Accept-Language header.
// Tags are tried by descending q weight. "zh-TW" matches the zh_TW catalogue
// and a bare "zh" matches any zh_* catalogue.
func Match(header string) (string, bool) {
	supported := GetSupportedLanguages()
	for _, tag := range acceptedTags(header) {
		for _, lang := range supported {
			if normalizeTag(lang) == tag {
				return lang, true
			}
		}
		if alias, ok := tagAliases[tag]; ok {
			tag = alias
		}
		for _, lang := range supported {
			norm := normalizeTag(lang)
			if norm == tag || strings.HasPrefix(norm, tag+"_") || strings.HasPrefix(tag, norm+"_") {
				return lang, true
			}
		}
	}
	return "", false
}

var tagAliases = map[string]string{
	"zh_hant": "zh_tw",
	"zh_hk":   "zh_tw",
}

type weightedTag struct {
	tag string
	q   float64
}

func acceptedTags(header string) []string {
	var weighted []weightedTag
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		tag := normalizeTag(strings.TrimSpace(fields[0]))
		if tag == "" || tag == "*" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if v, ok := strings.CutPrefix(param, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		if q <= 0 {
			continue
		}
		weighted = append(weighted, weightedTag{tag: tag, q: q})
	}

	sort.SliceStable(weighted, func(i, j int) bool { return weighted[i].q > weighted[j].q })
	tags := make([]string, len(weighted))
	for i, w := range weighted {
		tags[i] = w.tag
	}
	return tags
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(tag, "-", "_"))
}
