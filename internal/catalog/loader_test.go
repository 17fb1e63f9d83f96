package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestCSV writes content to a temp file and returns its path.
func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write test csv: %v", err)
	}
	return path
}

const testHeader = "product_id,product_name,category,brand,description,current_price,cost,stock_quantity,monthly_sales,average_rating,review_count,supplier,last_updated\n"

func Test_CSVLoader_Load(t *testing.T) {
	t.Parallel()

	csv := testHeader +
		"PROD-001,Wireless Headphones,Electronics,AudioMax,Great sound,99.99,45.00,50,120,4.5,230,Acme Supply,2024-03-01\n" +
		"PROD-002,Yoga Mat,Sports & Fitness,FlexFit,Non-slip mat,29.99,12.50,200,85,4.2,98,FitCorp,2024-02-15\n"

	loader := NewCSVLoader(writeTestCSV(t, csv), nil)
	products, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("want 2 products, got %d", len(products))
	}

	p := products[0]
	if p.ID != "PROD-001" || p.Name != "Wireless Headphones" || p.Brand != "AudioMax" {
		t.Errorf("unexpected first product: %+v", p)
	}
	if p.Price != 99.99 || p.Cost != 45.00 || p.StockQuantity != 50 || p.MonthlySales != 120 {
		t.Errorf("unexpected numeric fields: %+v", p)
	}
	if p.AverageRating != 4.5 || p.ReviewCount != 230 {
		t.Errorf("unexpected rating fields: %+v", p)
	}
	if p.LastUpdated.IsZero() {
		t.Error("last_updated should have been parsed")
	}
}

func Test_CSVLoader_SkipsEmptyIDAndMalformedRows(t *testing.T) {
	t.Parallel()

	csv := testHeader +
		",No ID Product,Electronics,X,desc,10,5,1,1,4.0,1,S,2024-01-01\n" +
		"PROD-003,Bad Price,Electronics,X,desc,not-a-number,5,1,1,4.0,1,S,2024-01-01\n" +
		"PROD-004,Good,Electronics,X,desc,10,5,1,1,4.0,1,S,2024-01-01\n"

	loader := NewCSVLoader(writeTestCSV(t, csv), nil)
	products, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 1 || products[0].ID != "PROD-004" {
		t.Fatalf("want only PROD-004, got %v", products)
	}
}

func Test_CSVLoader_EmptyNumericFieldsDefaultToZero(t *testing.T) {
	t.Parallel()

	csv := testHeader +
		"PROD-005,Sparse Row,Electronics,X,desc,,,,,,,,\n"

	loader := NewCSVLoader(writeTestCSV(t, csv), nil)
	products, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("want 1 product, got %d", len(products))
	}
	p := products[0]
	if p.Price != 0 || p.StockQuantity != 0 || p.AverageRating != 0 {
		t.Errorf("empty numeric fields should default to zero: %+v", p)
	}
	if !p.LastUpdated.IsZero() {
		t.Error("empty date should stay zero")
	}
}

func Test_CSVLoader_FloatFormattedIntegers(t *testing.T) {
	t.Parallel()

	csv := testHeader +
		"PROD-006,Exported Row,Electronics,X,desc,10,5,12.0,34.0,4.0,56.0,S,2024-01-01\n"

	loader := NewCSVLoader(writeTestCSV(t, csv), nil)
	products, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := products[0]
	if p.StockQuantity != 12 || p.MonthlySales != 34 || p.ReviewCount != 56 {
		t.Errorf("float-formatted integers should parse: %+v", p)
	}
}

func Test_CSVLoader_MissingFile(t *testing.T) {
	t.Parallel()

	loader := NewCSVLoader(filepath.Join(t.TempDir(), "nope.csv"), nil)
	if _, err := loader.Load(); err == nil {
		t.Fatal("want error for missing file")
	}
}
