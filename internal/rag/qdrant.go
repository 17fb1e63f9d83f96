package rag

import (
	"context"
	"crypto/md5" //nolint:gosec // deterministic point ID derivation, not security
	"encoding/hex"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/maresbv/prodscout-go/internal/catalog"
)

// Named vector fields within the collection. Every point carries both a
// dense embedding and a sparse keyword vector.
const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// scrollPageSize is the per-page limit for the id→hash scan used by
// incremental sync. The scan pages through the whole collection.
const scrollPageSize = 1000

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the dense embeddings stored in
	// this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// AvgDocLen is the average searchable-text length in tokens, used for
	// BM25 length normalisation in the sparse encoder. Zero selects the
	// default.
	AvgDocLen float64
}

// QdrantStore implements VectorStore backed by a Qdrant collection with a
// named dense vector (cosine) and a named sparse vector carrying BM25 term
// weights with a server-side IDF modifier.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// encoder produces the sparse vectors for documents and queries.
	encoder *SparseEncoder
}

// NewQdrantStore creates a new QdrantStore and ensures the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{
		client:  client,
		cfg:     cfg,
		encoder: NewSparseEncoder(cfg.AvgDocLen),
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying Qdrant client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// EnsureCollection creates the collection with its dense and sparse vector
// configuration if it does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return &RetrievalError{Op: "collection_exists", Err: err}
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {
				// Server-side IDF turns the stored TF weights into BM25 scores.
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
	})
	if err != nil {
		return &RetrievalError{Op: "create_collection", Err: err}
	}

	return nil
}

// Drop removes the collection if it exists.
func (s *QdrantStore) Drop(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return &RetrievalError{Op: "collection_exists", Err: err}
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return &RetrievalError{Op: "drop_collection", Err: err}
	}
	return nil
}

// Insert stores a batch of products. Every product must have its embedding
// pre-computed; the sparse vector is derived here from the search text.
func (s *QdrantStore) Insert(ctx context.Context, products []*catalog.Product) (int, error) {
	return s.write(ctx, products, "insert")
}

// Upsert stores or replaces a batch of products by ID.
func (s *QdrantStore) Upsert(ctx context.Context, products []*catalog.Product) (int, error) {
	return s.write(ctx, products, "upsert")
}

// write converts products to points and upserts them. Qdrant point upsert is
// insert-or-replace, so Insert and Upsert share the same RPC; the op name is
// kept for error reporting.
func (s *QdrantStore) write(ctx context.Context, products []*catalog.Product, op string) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(products))
	for _, p := range products {
		if p.Embedding == nil {
			return 0, &RetrievalError{Op: op, Err: fmt.Errorf("product %s has no embedding", p.ID)}
		}
		indices, values := s.encoder.EncodeDocument(p.SearchText())
		points = append(points, &qdrant.PointStruct{
			Id: pointID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				denseVectorName:  qdrant.NewVector(p.Embedding...),
				sparseVectorName: qdrant.NewVectorSparse(indices, values),
			}),
			Payload: qdrant.NewValueMap(productPayload(p)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return 0, &RetrievalError{Op: op, Err: err}
	}
	return len(products), nil
}

// Delete removes products by their catalog IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return 0, &RetrievalError{Op: "delete", Err: err}
	}
	return len(ids), nil
}

// DenseSearch performs cosine similarity search over the dense vectors.
func (s *QdrantStore) DenseSearch(ctx context.Context, embedding []float32, limit int, filter *SearchFilter) ([]Hit, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Using:          qdrant.PtrOf(denseVectorName),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)), //nolint:gosec // limit is a small positive result count
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &RetrievalError{Op: "dense_search", Err: err}
	}
	return hitsFromPoints(results), nil
}

// SparseSearch performs keyword search using the BM25-weighted sparse vector.
func (s *QdrantStore) SparseSearch(ctx context.Context, queryText string, limit int, filter *SearchFilter) ([]Hit, error) {
	indices, values := s.encoder.EncodeQuery(queryText)
	if len(indices) == 0 {
		return nil, nil
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuerySparse(indices, values),
		Using:          qdrant.PtrOf(sparseVectorName),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)), //nolint:gosec // limit is a small positive result count
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &RetrievalError{Op: "sparse_search", Err: err}
	}
	return hitsFromPoints(results), nil
}

// scrollPage fetches one page of points starting at offset and returns the
// offset of the next page, nil when the collection is exhausted.
type scrollPage func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)

// ContentHashes scans the whole collection page by page and returns the
// product ID → content hash map used by incremental sync. Truncating the
// scan would make sync re-embed stored products and miss deletions, so the
// scroll loops until the server reports no further page.
func (s *QdrantStore) ContentHashes(ctx context.Context) (map[string]string, error) {
	hashes, err := collectContentHashes(ctx, func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		return s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("product_id", "content_hash"),
		})
	})
	if err != nil {
		return nil, &RetrievalError{Op: "content_hashes", Err: err}
	}
	return hashes, nil
}

// collectContentHashes drains every page returned by the pager into one map.
func collectContentHashes(ctx context.Context, page scrollPage) (map[string]string, error) {
	hashes := make(map[string]string)
	var offset *qdrant.PointId
	for {
		points, next, err := page(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, pt := range points {
			payload := pt.GetPayload()
			if payload == nil {
				continue
			}
			id := payload["product_id"].GetStringValue()
			if id == "" {
				continue
			}
			hashes[id] = payload["content_hash"].GetStringValue()
		}
		if next == nil {
			break
		}
		offset = next
	}
	return hashes, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildFilter converts a SearchFilter to a Qdrant filter expression.
// Returns nil when no conditions apply.
func buildFilter(f *SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}

	var must []*qdrant.Condition
	if f.Category != "" {
		must = append(must, qdrant.NewMatch("category", f.Category))
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		rng := &qdrant.Range{}
		if f.MinPrice != nil {
			rng.Gte = f.MinPrice
		}
		if f.MaxPrice != nil {
			rng.Lte = f.MaxPrice
		}
		must = append(must, qdrant.NewRange("price", rng))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// productPayload flattens a product into the point payload. The embedding
// itself lives in the named vectors, not the payload.
func productPayload(p *catalog.Product) map[string]any {
	payload := map[string]any{
		"product_id":     p.ID,
		"name":           p.Name,
		"category":       p.Category,
		"brand":          p.Brand,
		"description":    p.Description,
		"price":          p.Price,
		"cost":           p.Cost,
		"stock_quantity": int64(p.StockQuantity),
		"monthly_sales":  int64(p.MonthlySales),
		"average_rating": p.AverageRating,
		"review_count":   int64(p.ReviewCount),
		"supplier":       p.Supplier,
		"content_hash":   p.ContentHash(),
	}
	if !p.LastUpdated.IsZero() {
		payload["last_updated"] = p.LastUpdated.Format("2006-01-02")
	}
	return payload
}

// hitsFromPoints converts scored points back into catalog products.
func hitsFromPoints(points []*qdrant.ScoredPoint) []Hit {
	hits := make([]Hit, 0, len(points))
	for _, pt := range points {
		payload := pt.GetPayload()
		if payload == nil {
			continue
		}
		p := &catalog.Product{
			ID:            payload["product_id"].GetStringValue(),
			Name:          payload["name"].GetStringValue(),
			Category:      payload["category"].GetStringValue(),
			Brand:         payload["brand"].GetStringValue(),
			Description:   payload["description"].GetStringValue(),
			Price:         payload["price"].GetDoubleValue(),
			Cost:          payload["cost"].GetDoubleValue(),
			StockQuantity: int(payload["stock_quantity"].GetIntegerValue()),
			MonthlySales:  int(payload["monthly_sales"].GetIntegerValue()),
			AverageRating: payload["average_rating"].GetDoubleValue(),
			ReviewCount:   int(payload["review_count"].GetIntegerValue()),
			Supplier:      payload["supplier"].GetStringValue(),
		}
		if p.ID == "" {
			continue
		}
		if raw := payload["last_updated"].GetStringValue(); raw != "" {
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				p.LastUpdated = t
			}
		}
		hits = append(hits, Hit{Product: p, Score: pt.GetScore()})
	}
	return hits
}

// pointID derives a deterministic UUID-formatted point ID from a catalog
// product ID. Qdrant point IDs must be UUIDs or integers; hashing keeps the
// mapping stable across ingestion runs so upserts replace rather than
// duplicate.
func pointID(productID string) *qdrant.PointId {
	sum := md5.Sum([]byte(productID)) //nolint:gosec // stable ID derivation only
	hexed := hex.EncodeToString(sum[:])
	uuid := fmt.Sprintf("%s-%s-%s-%s-%s", hexed[0:8], hexed[8:12], hexed[12:16], hexed[16:20], hexed[20:32])
	return qdrant.NewIDUUID(uuid)
}
