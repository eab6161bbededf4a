package domain

// CartItem is a single line of a cart. Quantity is always at least 1.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart holds at most one item per product, in insertion order.
type Cart struct {
	Items []CartItem `json:"items"`
}

// AddToCart returns a copy of cart with productID incremented by one, or
// appended with quantity 1 when it is not in the cart yet. The Mongo cart
// store applies the same rule as a conditional $inc or $push; this is the
// in-memory form of it.
func AddToCart(cart Cart, productID string) Cart {
	items := make([]CartItem, 0, len(cart.Items)+1)
	found := false
	for _, item := range cart.Items {
		if item.ProductID == productID {
			item.Quantity++
			found = true
		}
		items = append(items, item)
	}
	if !found {
		items = append(items, CartItem{ProductID: productID, Quantity: 1})
	}
	return Cart{Items: items}
}

// RemoveFromCart drops the whole line for productID. Removing an absent
// product returns an equal cart. In-memory form of the store's $pull.
func RemoveFromCart(cart Cart, productID string) Cart {
	items := make([]CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.ProductID == productID {
			continue
		}
		items = append(items, item)
	}
	return Cart{Items: items}
}

// SubtractItems takes the quantities in items out of cart and drops lines
// that reach zero. Lines added after items was read are kept.
func SubtractItems(cart Cart, items []CartItem) Cart {
	taken := make(map[string]int, len(items))
	for _, item := range items {
		taken[item.ProductID] += item.Quantity
	}

	kept := make([]CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		item.Quantity -= taken[item.ProductID]
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	return Cart{Items: kept}
}

func ClearCart() Cart {
	return Cart{Items: []CartItem{}}
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the quantity for productID, 0 if absent.
func (c Cart) Quantity(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CartLine is a cart item resolved against the catalog.
type CartLine struct {
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
}

// CartView is the resolved cart. Missing lists product ids that are still
// in the cart but no longer exist in the catalog.
type CartView struct {
	Lines   []CartLine `json:"lines"`
	Missing []string   `json:"missing,omitempty"`
}
