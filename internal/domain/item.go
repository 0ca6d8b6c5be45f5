package domain

import "sort"

// ItemID identifies a tradable good at a dock.
type ItemID int

// Well-known item ids.
const (
	ItemMedicine ItemID = 1006
	ItemWater    ItemID = 1008
)

// Prices is the buy/sell pair a dock quotes for one item.
type Prices struct {
	Buy  float64 `json:"buy_price"`
	Sell float64 `json:"sell_price"`
}

// Item is the dock-side state of a single tradable good.
type Item struct {
	ID     ItemID `json:"item_id"`
	Name   string `json:"name"`
	Prices Prices `json:"prices"`
	// Stock counts units the dock holds that the player may sell back.
	Stock int `json:"stock"`
}

// SortItems orders items by id in place.
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
