package model

import "testing"

func TestDocumentMetaRoundTrip(t *testing.T) {
	doc := Document{}
	doc.SetMeta(map[string]interface{}{"page_count": 12})

	meta := doc.Meta()
	if got, ok := meta["page_count"].(float64); !ok || int(got) != 12 {
		t.Fatalf("unexpected metadata: %v", meta)
	}

	doc.SetMeta(nil)
	if doc.Metadata != "{}" {
		t.Fatalf("empty metadata must serialize as {}, got %q", doc.Metadata)
	}
}

func TestChunkPage(t *testing.T) {
	chunk := DocumentChunk{}
	if _, ok := chunk.Page(); ok {
		t.Fatal("chunk without metadata must have no page")
	}

	chunk.SetPage(5)
	page, ok := chunk.Page()
	if !ok || page != 5 {
		t.Fatalf("expected page 5, got %d ok=%v", page, ok)
	}

	chunk.Metadata = "not json"
	if _, ok := chunk.Page(); ok {
		t.Fatal("malformed metadata must yield no page")
	}
}
