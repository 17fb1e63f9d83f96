// Package catalog defines the Product entity and the CSV loader that turns a
// catalog export into Product values. Products are created by the ingestion
// pipeline and are read-only everywhere else; query-time code never mutates
// a stored product.
package catalog

import (
	"crypto/md5" //nolint:gosec // content fingerprint for change detection, not security
	"encoding/hex"
	"fmt"
	"time"
)

// Product is a single product in the catalog, including pricing, stock, and
// the dense embedding computed during ingestion.
type Product struct {
	// ID is the stable external product identifier (e.g. "PROD-001").
	ID string

	// Name is the display name of the product.
	Name string

	// Category is the catalog category (e.g. "Electronics").
	Category string

	// Brand is the product brand.
	Brand string

	// Description is the free-text product description.
	Description string

	// Price is the selling price to the customer.
	Price float64

	// Cost is the unit cost from the supplier.
	Cost float64

	// StockQuantity is the current stock level.
	StockQuantity int

	// MonthlySales is the number of units sold per month.
	MonthlySales int

	// AverageRating is the 1-5 star rating. Zero means no rating recorded.
	AverageRating float64

	// ReviewCount is the number of customer reviews.
	ReviewCount int

	// Supplier is the supplier name.
	Supplier string

	// LastUpdated is the date the source row was last updated. Zero value
	// means the source row carried no parseable date.
	LastUpdated time.Time

	// Embedding is the dense vector computed from SearchText. Nil until the
	// ingestion pipeline has embedded the product.
	Embedding []float32
}

// DefaultLowMarginThreshold is the margin percentage below which a product is
// considered low-margin.
const DefaultLowMarginThreshold = 40.0

// DefaultBestsellerThreshold is the monthly sales count at which a product is
// considered a bestseller.
const DefaultBestsellerThreshold = 100

// Margin returns the profit margin as a percentage: (price-cost)/price*100.
// Products with a non-positive price have a margin of 0 by convention.
func (p *Product) Margin() float64 {
	if p.Price <= 0 {
		return 0.0
	}
	return (p.Price - p.Cost) / p.Price * 100
}

// LowMargin reports whether the margin is below threshold. A threshold of 0
// uses DefaultLowMarginThreshold.
func (p *Product) LowMargin(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultLowMarginThreshold
	}
	return p.Margin() < threshold
}

// InStock reports whether the product has any stock available.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// Bestseller reports whether monthly sales meet threshold. A threshold of 0
// uses DefaultBestsellerThreshold.
func (p *Product) Bestseller(threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultBestsellerThreshold
	}
	return p.MonthlySales >= threshold
}

// SearchText returns the text used for both embedding generation and sparse
// keyword search. The ID is included so keyword search can match exact
// product identifiers.
func (p *Product) SearchText() string {
	return fmt.Sprintf("%s. %s. %s. Brand: %s. Category: %s.",
		p.ID, p.Name, p.Description, p.Brand, p.Category)
}

// ContentHash returns the hex MD5 digest of SearchText. Sync uses it to
// detect content changes: only products whose hash differs from the stored
// value are re-embedded. Changes to fields outside SearchText (stock,
// sales, price) do not alter the hash.
func (p *Product) ContentHash() string {
	sum := md5.Sum([]byte(p.SearchText())) //nolint:gosec // change detection only
	return hex.EncodeToString(sum[:])
}
