// Package catalog models the product catalog and its storage.
//
// Products arrive as a JSON snapshot file and are mirrored into a SQLite
// store used to enrich search results with full product details.
package catalog

import (
	"fmt"
	"strings"

	"github.com/skuseek/skuseek/internal/filter"
)

// Product is one catalog entry. The product code is the stable identity
// used across the keyword index, the vector store, and the SQLite mirror.
type Product struct {
	Code        string   `json:"product_code"`
	Description string   `json:"description"`
	BasePrice   float64  `json:"base_price"`
	Categories  []string `json:"categories,omitempty"`
	Series      string   `json:"series,omitempty"`
	Features    string   `json:"features,omitempty"`
	Height      float64  `json:"height,omitempty"`
	Width       float64  `json:"width,omitempty"`
	Depth       float64  `json:"depth,omitempty"`
	Weight      float64  `json:"weight,omitempty"`
	Volume      float64  `json:"volume_value,omitempty"`
}

// Validate checks the fields required for indexing.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("product has no product_code")
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("product %s has no description", p.Code)
	}
	if p.BasePrice < 0 {
		return fmt.Errorf("product %s has negative base_price", p.Code)
	}
	return nil
}

// SearchText returns the text indexed for keyword and semantic retrieval.
func (p Product) SearchText() string {
	parts := make([]string, 0, 4)
	parts = append(parts, p.Description)
	if len(p.Categories) > 0 {
		parts = append(parts, strings.Join(p.Categories, " "))
	}
	if p.Series != "" {
		parts = append(parts, p.Series)
	}
	if p.Features != "" {
		parts = append(parts, p.Features)
	}
	return strings.Join(parts, " ")
}

// Attributes returns the filterable view of the product.
// Zero-valued dimensions are omitted so range predicates on them fail
// rather than matching a value that was never measured.
func (p Product) Attributes() filter.Attributes {
	attrs := filter.Attributes{
		"product_code": p.Code,
		"base_price":   p.BasePrice,
	}
	if len(p.Categories) > 0 {
		attrs["categories"] = p.Categories
	}
	if p.Series != "" {
		attrs["series"] = p.Series
	}
	if p.Height > 0 {
		attrs["height"] = p.Height
	}
	if p.Width > 0 {
		attrs["width"] = p.Width
	}
	if p.Depth > 0 {
		attrs["depth"] = p.Depth
	}
	if p.Weight > 0 {
		attrs["weight"] = p.Weight
	}
	if p.Volume > 0 {
		attrs["volume_value"] = p.Volume
	}
	return attrs
}
