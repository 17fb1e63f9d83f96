package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// csvDateLayout is the date format used by the catalog export.
const csvDateLayout = "2006-01-02"

// CSVLoader reads a catalog export file into Product values.
//
// Expected columns (header row required, order-independent):
//
//	product_id, product_name, category, brand, description, current_price,
//	cost, stock_quantity, monthly_sales, average_rating, review_count,
//	supplier, last_updated
type CSVLoader struct {
	// path is the CSV file path.
	path string

	// log records skipped rows. Defaults to slog.Default if nil.
	log *slog.Logger
}

// NewCSVLoader constructs a CSVLoader for the given file path.
func NewCSVLoader(path string, log *slog.Logger) *CSVLoader {
	if log == nil {
		log = slog.Default()
	}
	return &CSVLoader{path: path, log: log}
}

// Path returns the CSV file path this loader reads.
func (l *CSVLoader) Path() string { return l.path }

// Load reads all products from the CSV file. Rows with an empty product_id
// are skipped silently; rows with unparseable numeric fields are skipped
// with a warning. A missing or unreadable file is an error.
func (l *CSVLoader) Load() ([]*Product, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read header of %s: %w", l.path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := col["product_id"]; !ok {
		return nil, fmt.Errorf("catalog: %s has no product_id column", l.path)
	}

	var products []*Product
	line := 1
	for {
		record, err := r.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s line %d: %w", l.path, line, err)
		}

		p, perr := rowToProduct(col, record)
		if perr != nil {
			l.log.Warn("catalog: skipping invalid row",
				slog.Int("line", line),
				slog.Any("error", perr),
			)
			continue
		}
		if p == nil {
			continue // empty product_id
		}
		products = append(products, p)
	}

	return products, nil
}

// rowToProduct converts one CSV record to a Product using the header column
// map. Returns (nil, nil) for rows with an empty product_id.
func rowToProduct(col map[string]int, record []string) (*Product, error) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := get("product_id")
	if id == "" {
		return nil, nil
	}

	price, err := parseFloat(get("current_price"))
	if err != nil {
		return nil, fmt.Errorf("current_price: %w", err)
	}
	cost, err := parseFloat(get("cost"))
	if err != nil {
		return nil, fmt.Errorf("cost: %w", err)
	}
	stock, err := parseInt(get("stock_quantity"))
	if err != nil {
		return nil, fmt.Errorf("stock_quantity: %w", err)
	}
	sales, err := parseInt(get("monthly_sales"))
	if err != nil {
		return nil, fmt.Errorf("monthly_sales: %w", err)
	}
	rating, err := parseFloat(get("average_rating"))
	if err != nil {
		return nil, fmt.Errorf("average_rating: %w", err)
	}
	reviews, err := parseInt(get("review_count"))
	if err != nil {
		return nil, fmt.Errorf("review_count: %w", err)
	}

	// Dates are best-effort: an unparseable date leaves the zero value
	// rather than invalidating the whole row.
	var updated time.Time
	if raw := get("last_updated"); raw != "" {
		if t, terr := time.Parse(csvDateLayout, raw); terr == nil {
			updated = t
		}
	}

	return &Product{
		ID:            id,
		Name:          get("product_name"),
		Category:      get("category"),
		Brand:         get("brand"),
		Description:   get("description"),
		Price:         price,
		Cost:          cost,
		StockQuantity: stock,
		MonthlySales:  sales,
		AverageRating: rating,
		ReviewCount:   reviews,
		Supplier:      get("supplier"),
		LastUpdated:   updated,
	}, nil
}

// parseFloat parses a float field, treating empty as zero.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt parses an integer field, treating empty as zero and accepting
// float-formatted values ("12.0") the way catalog exports sometimes emit them.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
