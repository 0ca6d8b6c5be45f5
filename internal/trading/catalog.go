package trading

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// CatalogItem is the YAML shape of one tradable good.
type CatalogItem struct {
	ID        int     `yaml:"id"`
	Name      string  `yaml:"name"`
	BuyPrice  float64 `yaml:"buy_price"`
	SellPrice float64 `yaml:"sell_price"`
	Stock     int     `yaml:"stock"`
}

// Catalog lists the items every new dock starts with.
type Catalog struct {
	Items []CatalogItem `yaml:"items"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{Items: []CatalogItem{
		{ID: int(domain.ItemMedicine), Name: "medicine", BuyPrice: 120, SellPrice: 90, Stock: 5},
		{ID: int(domain.ItemWater), Name: "water", BuyPrice: 20, SellPrice: 15, Stock: 10},
	}}
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("trading: read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("trading: catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate reports every problem with the catalog at once.
func (c Catalog) Validate() error {
	if len(c.Items) == 0 {
		return errors.New("catalog has no items")
	}
	var errs []string
	seen := make(map[int]bool, len(c.Items))
	for i, it := range c.Items {
		if seen[it.ID] {
			errs = append(errs, fmt.Sprintf("items[%d]: duplicate id %d", i, it.ID))
		}
		seen[it.ID] = true
		if !validPrice(it.BuyPrice) || !validPrice(it.SellPrice) {
			errs = append(errs, fmt.Sprintf("items[%d]: prices must be positive and finite", i))
		}
		if it.Stock < 0 {
			errs = append(errs, fmt.Sprintf("items[%d]: stock must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DomainItems converts the catalog to dock items, ordered by id.
func (c Catalog) DomainItems() []domain.Item {
	out := make([]domain.Item, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, domain.Item{
			ID:     domain.ItemID(it.ID),
			Name:   it.Name,
			Prices: domain.Prices{Buy: it.BuyPrice, Sell: it.SellPrice},
			Stock:  it.Stock,
		})
	}
	domain.SortItems(out)
	return out
}

// NewDock builds a dock stocked from the catalog.
func (c Catalog) NewDock(id string, opts ...DockOption) (*Dock, error) {
	return NewDock(id, c.DomainItems(), opts...)
}
