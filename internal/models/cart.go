package models

// CartItem is one line of a user's cart. Price and Stock are informational copies taken
// when the line was last written; checkout always re-reads the catalog.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
	Image     string  `json:"img,omitempty"`
	Stock     int     `json:"stock"`
}
