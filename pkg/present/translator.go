package present

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"booknest/pkg/storage"
)

// Supported display languages. The first one is the default.
var Languages = []string{"ru", "en", "kk"}

const fallbackLanguage = "en"

//go:embed translations.yaml
var defaultCatalog []byte

// Catalog maps a translation key to its text per language code.
type Catalog map[string]map[string]string

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

var matcher = language.NewMatcher([]language.Tag{
	language.Russian,
	language.English,
	language.Kazakh,
})

// Negotiate maps a requested language code (e.g. "en-US") to a supported
// one, or the default when nothing matches.
func Negotiate(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return Languages[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Languages[0]
	}
	return Languages[idx]
}

// Translator renders translation keys in the current language. The chosen
// language is persisted so it survives logout and restarts.
type Translator struct {
	catalog Catalog
	store   storage.Storage

	mu   sync.RWMutex
	lang string
}

// NewTranslator restores the persisted language, or uses preferred when none
// was stored. store may be nil.
func NewTranslator(ctx context.Context, catalog Catalog, store storage.Storage, preferred string) *Translator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	lang := Negotiate(preferred)
	if store != nil {
		saved, ok, err := store.Get(ctx, storage.KeyLanguage)
		switch {
		case err != nil:
			slog.Warn("read language failed", "err", err)
		case ok:
			lang = Negotiate(string(saved))
		}
	}
	return &Translator{catalog: catalog, store: store, lang: lang}
}

func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lang
}

// SetLanguage switches and persists the display language and returns the
// code actually chosen.
func (t *Translator) SetLanguage(ctx context.Context, code string) (string, error) {
	lang := Negotiate(code)
	t.mu.Lock()
	t.lang = lang
	t.mu.Unlock()
	if t.store == nil {
		return lang, nil
	}
	if err := t.store.Put(ctx, storage.KeyLanguage, []byte(lang)); err != nil {
		return lang, fmt.Errorf("save language: %w", err)
	}
	return lang, nil
}

// T returns the text for key in the current language, falling back to
// English and then to the key itself.
func (t *Translator) T(key string) string {
	entry, ok := t.catalog[key]
	if !ok {
		return key
	}
	if s := entry[t.Language()]; s != "" {
		return s
	}
	if s := entry[fallbackLanguage]; s != "" {
		return s
	}
	return key
}
