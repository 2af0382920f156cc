package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookups carries the reference tables the pipeline consults: language
// display names for prompts and a topic taxonomy for analytics
// categorization. Passed explicitly into orchestrators instead of living as
// package-level maps.
type Lookups struct {
	LanguageNames map[string]string   `yaml:"language_names"`
	TopicTaxonomy map[string][]string `yaml:"topic_taxonomy"`
}

// LoadLookups reads optional overrides from a YAML file and merges them over
// the built-in defaults. An empty path returns the defaults.
func LoadLookups(path string) (Lookups, error) {
	lookups := DefaultLookups()
	if path == "" {
		return lookups, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Lookups{}, fmt.Errorf("read lookups file: %w", err)
	}

	var overrides Lookups
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return Lookups{}, fmt.Errorf("parse lookups yaml: %w", err)
	}

	for code, name := range overrides.LanguageNames {
		lookups.LanguageNames[strings.ToLower(code)] = name
	}
	for category, keywords := range overrides.TopicTaxonomy {
		lookups.TopicTaxonomy[category] = keywords
	}
	return lookups, nil
}

// LanguageName resolves a display name for prompts; unknown codes fall back
// to the code itself.
func (l Lookups) LanguageName(code string) string {
	if name, ok := l.LanguageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// CategorizeQuery assigns the first taxonomy category whose keyword appears
// in the canonical query text, or "general".
func (l Lookups) CategorizeQuery(canonicalText string) string {
	text := strings.ToLower(canonicalText)
	for _, category := range taxonomyOrder {
		keywords, ok := l.TopicTaxonomy[category]
		if !ok {
			continue
		}
		for _, keyword := range keywords {
			if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
				return category
			}
		}
	}
	for category, keywords := range l.TopicTaxonomy {
		if isDefaultCategory(category) {
			continue
		}
		for _, keyword := range keywords {
			if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
				return category
			}
		}
	}
	return "general"
}

// taxonomyOrder keeps default categories deterministic; custom categories
// are consulted afterwards in map order.
var taxonomyOrder = []string{"people", "places", "events", "institutions", "daily_life"}

func isDefaultCategory(category string) bool {
	for _, c := range taxonomyOrder {
		if c == category {
			return true
		}
	}
	return false
}

func DefaultLookups() Lookups {
	return Lookups{
		LanguageNames: map[string]string{
			"en": "English",
			"es": "Spanish",
			"fr": "French",
			"de": "German",
			"it": "Italian",
			"pt": "Portuguese",
			"ru": "Russian",
			"uk": "Ukrainian",
			"pl": "Polish",
			"nl": "Dutch",
			"sv": "Swedish",
			"he": "Hebrew",
			"yi": "Yiddish",
			"ar": "Arabic",
			"zh": "Chinese",
			"ja": "Japanese",
		},
		TopicTaxonomy: map[string][]string{
			"people":       {"who", "family", "person", "people", "biography", "born", "died"},
			"places":       {"where", "town", "village", "city", "street", "building", "region"},
			"events":       {"when", "war", "festival", "fire", "flood", "founding", "anniversary"},
			"institutions": {"school", "church", "synagogue", "council", "society", "club", "factory"},
			"daily_life":   {"work", "trade", "market", "food", "clothing", "custom", "tradition"},
		},
	}
}
