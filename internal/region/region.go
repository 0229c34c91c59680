package region

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/waabox/zohoauth/internal/domain"
)

// Default is the region used when --server is not given.
const Default = "us"

//go:embed regions.toml
var regionsTOML string

// Region maps a data-center key to its accounts server base URL.
type Region struct {
	Key string `toml:"key"`
	URL string `toml:"url"`
}

// Registry maps region keys to accounts servers.
type Registry struct {
	entries []Region
}

var builtin = mustParse(regionsTOML)

// Parse decodes a region table. Every key must be unique and map to an absolute URL.
func Parse(doc string) (*Registry, error) {
	var table struct {
		Regions []Region `toml:"region"`
	}
	if _, err := toml.Decode(doc, &table); err != nil {
		return nil, fmt.Errorf("decoding region table: %w", err)
	}
	r := &Registry{}
	seen := make(map[string]bool, len(table.Regions))
	for _, e := range table.Regions {
		key := normalize(e.Key)
		if key == "" {
			return nil, fmt.Errorf("region table: entry with empty key")
		}
		if seen[key] {
			return nil, fmt.Errorf("region table: duplicate key %q", key)
		}
		u, err := url.Parse(e.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("region table: key %q has invalid url %q", key, e.URL)
		}
		seen[key] = true
		r.entries = append(r.entries, Region{Key: key, URL: strings.TrimSuffix(e.URL, "/")})
	}
	return r, nil
}

func mustParse(doc string) *Registry {
	r, err := Parse(doc)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the accounts server URL for key.
// Unknown keys yield a *domain.InvalidRegionError listing every valid key.
func (r *Registry) Resolve(key string) (string, error) {
	k := normalize(key)
	for _, e := range r.entries {
		if e.Key == k {
			return e.URL, nil
		}
	}
	return "", &domain.InvalidRegionError{Region: key, Valid: r.Keys()}
}

// Keys returns the region keys in table order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// All returns a copy of the region table.
func (r *Registry) All() []Region {
	return append([]Region(nil), r.entries...)
}

// Resolve looks key up in the built-in region table.
func Resolve(key string) (string, error) {
	return builtin.Resolve(key)
}

// Keys returns the built-in region keys in table order.
func Keys() []string {
	return builtin.Keys()
}

// All returns the built-in region table.
func All() []Region {
	return builtin.All()
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
