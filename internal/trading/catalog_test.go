package trading

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alanyoungcy/dockside/internal/domain"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := DefaultCatalog()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	items := c.DomainItems()
	if len(items) != 2 || items[0].ID != domain.ItemMedicine || items[1].ID != domain.ItemWater {
		t.Fatalf("unexpected default items %+v", items)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `items:
  - id: 1008
    name: water
    buy_price: 12.5
    sell_price: 10
    stock: 3
  - id: 2001
    name: rope
    buy_price: 4
    sell_price: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	d, err := c.NewDock("north")
	if err != nil {
		t.Fatalf("NewDock: %v", err)
	}
	p, err := d.Prices(domain.ItemWater)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if p.Buy != 12.5 || p.Sell != 10 {
		t.Errorf("water prices = %+v, want 12.5/10", p)
	}
	rope, err := d.Item(2001)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if rope.Name != "rope" || rope.Stock != 0 {
		t.Errorf("unexpected rope %+v", rope)
	}
}

func TestParseCatalogReportsAllProblems(t *testing.T) {
	data := `items:
  - id: 1
    buy_price: 0
    sell_price: 1
  - id: 1
    buy_price: 1
    sell_price: 1
    stock: -2
`
	_, err := ParseCatalog([]byte(data))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"items[0]: prices", "items[1]: duplicate", "items[1]: stock"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestParseCatalogEmpty(t *testing.T) {
	if _, err := ParseCatalog([]byte("items: []\n")); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestParseCatalogRejectsNonFinitePrices(t *testing.T) {
	for _, price := range []string{".nan", ".inf", "-.inf"} {
		data := "items:\n  - id: 1\n    buy_price: " + price + "\n    sell_price: 1\n"
		_, err := ParseCatalog([]byte(data))
		if err == nil || !strings.Contains(err.Error(), "items[0]: prices") {
			t.Errorf("buy_price %s: error = %v, want price error", price, err)
		}
	}
}
