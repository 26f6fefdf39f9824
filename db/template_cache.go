package db

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/quintans/faults"
)

const DefaultTemplateCacheSize = 256

type templateKey struct {
	text       string
	translator string
}

// TemplateCache keeps parsed templates. Every Get hands out a private clone,
// so substitution values never leak between users.
type TemplateCache struct {
	cache *lru.Cache[templateKey, *Template]
}

func NewTemplateCache(size int) *TemplateCache {
	if size <= 0 {
		size = DefaultTemplateCacheSize
	}
	cache, _ := lru.New[templateKey, *Template](size)
	return &TemplateCache{cache: cache}
}

func (c *TemplateCache) Get(text string, translator Translator) (*Template, error) {
	if translator == nil {
		translator = DefaultTranslator
	}
	key := templateKey{text: text, translator: translator.Name()}
	if t, ok := c.cache.Get(key); ok {
		return t.Clone(), nil
	}

	t, err := ParseWith(text, translator)
	if err != nil {
		return nil, faults.Wrap(err)
	}
	c.cache.Add(key, t)
	return t.Clone(), nil
}

func (c *TemplateCache) Len() int {
	return c.cache.Len()
}

var defaultTemplateCache = NewTemplateCache(DefaultTemplateCacheSize)

// ParseCached parses through a process wide cache.
func ParseCached(text string, translator Translator) (*Template, error) {
	return defaultTemplateCache.Get(text, translator)
}
