package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StockKey identifies one product at one store in the external catalog.
type StockKey struct {
	ProductID string
	StoreID   string
}

func (k StockKey) String() string {
	return k.ProductID + "@" + k.StoreID
}

// Valid reports whether both identifiers are present.
func (k StockKey) Valid() bool {
	return strings.TrimSpace(k.ProductID) != "" && strings.TrimSpace(k.StoreID) != ""
}

// TrackedProduct is a catalog entry the poller watches.
type TrackedProduct struct {
	ID        string `yaml:"id" json:"id"`
	ProductID string `yaml:"product_id" json:"product_id"`
	StoreID   string `yaml:"store_id" json:"store_id"`
	Name      string `yaml:"name" json:"name"`
	Store     string `yaml:"store" json:"store"`
}

func (p TrackedProduct) Key() StockKey {
	return StockKey{ProductID: p.ProductID, StoreID: p.StoreID}
}

// Catalog is the immutable mapping of tracked products, keyed by TrackedProduct.ID.
type Catalog struct {
	byID  map[string]TrackedProduct
	byKey map[StockKey]string
	order []string
}

// NewCatalog validates the entries and builds the mapping. Ids and stock keys
// must be unique.
func NewCatalog(products []TrackedProduct) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]TrackedProduct, len(products))}
	keys := make(map[StockKey]string, len(products))
	c.byKey = keys

	for i, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.ProductID = strings.TrimSpace(p.ProductID)
		p.StoreID = strings.TrimSpace(p.StoreID)
		if p.ID == "" {
			return nil, fmt.Errorf("product #%d: id is required", i)
		}
		if !p.Key().Valid() {
			return nil, fmt.Errorf("product %q: product_id and store_id are required", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("product %q: duplicate id", p.ID)
		}
		if other, dup := keys[p.Key()]; dup {
			return nil, fmt.Errorf("product %q: stock key %s already tracked by %q", p.ID, p.Key(), other)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.byID[p.ID] = p
		keys[p.Key()] = p.ID
		c.order = append(c.order, p.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

type catalogFile struct {
	Products []TrackedProduct `yaml:"products"`
}

// LoadCatalog reads tracked products from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("decode catalog: no products")
	}
	return NewCatalog(f.Products)
}

func (c *Catalog) Get(id string) (TrackedProduct, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ByKey finds the product tracked under key.
func (c *Catalog) ByKey(key StockKey) (TrackedProduct, bool) {
	id, ok := c.byKey[key]
	if !ok {
		return TrackedProduct{}, false
	}
	return c.byID[id], true
}

// All returns the products ordered by id.
func (c *Catalog) All() []TrackedProduct {
	out := make([]TrackedProduct, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}
