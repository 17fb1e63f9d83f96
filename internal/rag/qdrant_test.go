package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func hashPoint(id, hash string) *qdrant.RetrievedPoint {
	return &qdrant.RetrievedPoint{
		Payload: map[string]*qdrant.Value{
			"product_id":   qdrant.NewValueString(id),
			"content_hash": qdrant.NewValueString(hash),
		},
	}
}

func Test_CollectContentHashes_DrainsAllPages(t *testing.T) {
	t.Parallel()

	pages := [][]*qdrant.RetrievedPoint{
		{hashPoint("PROD-001", "h1"), hashPoint("PROD-002", "h2")},
		{hashPoint("PROD-003", "h3"), hashPoint("PROD-004", "h4")},
		{hashPoint("PROD-005", "h5")},
	}
	var offsets []*qdrant.PointId

	page := func(_ context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		offsets = append(offsets, offset)
		i := len(offsets) - 1
		if i >= len(pages) {
			t.Fatalf("pager called %d times, want %d", len(offsets), len(pages))
		}
		var next *qdrant.PointId
		if i < len(pages)-1 {
			next = qdrant.NewIDNum(uint64(i + 1))
		}
		return pages[i], next, nil
	}

	hashes, err := collectContentHashes(context.Background(), page)
	if err != nil {
		t.Fatalf("collectContentHashes: %v", err)
	}
	if len(hashes) != 5 {
		t.Fatalf("hashes = %d, want 5 (all pages drained)", len(hashes))
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("PROD-00%d", i)
		if hashes[id] != fmt.Sprintf("h%d", i) {
			t.Errorf("hashes[%s] = %q", id, hashes[id])
		}
	}

	// The first call starts from the beginning, later calls carry the
	// server-reported next-page offset.
	if len(offsets) != 3 {
		t.Fatalf("pager calls = %d, want 3", len(offsets))
	}
	if offsets[0] != nil {
		t.Error("first page should start with a nil offset")
	}
	if offsets[1] == nil || offsets[2] == nil {
		t.Error("later pages should carry the next-page offset")
	}
}

func Test_CollectContentHashes_SkipsMissingIDs(t *testing.T) {
	t.Parallel()

	page := func(context.Context, *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		return []*qdrant.RetrievedPoint{
			hashPoint("PROD-001", "h1"),
			{Payload: map[string]*qdrant.Value{"content_hash": qdrant.NewValueString("orphan")}},
			{},
		}, nil, nil
	}

	hashes, err := collectContentHashes(context.Background(), page)
	if err != nil {
		t.Fatalf("collectContentHashes: %v", err)
	}
	if len(hashes) != 1 || hashes["PROD-001"] != "h1" {
		t.Errorf("hashes = %v, want only PROD-001", hashes)
	}
}

func Test_CollectContentHashes_PropagatesPagerError(t *testing.T) {
	t.Parallel()

	pagerErr := errors.New("connection reset")
	page := func(context.Context, *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		return nil, nil, pagerErr
	}

	if _, err := collectContentHashes(context.Background(), page); !errors.Is(err, pagerErr) {
		t.Fatalf("err = %v, want the pager error", err)
	}
}
