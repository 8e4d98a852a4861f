package document

import "testing"

func TestNew_DerivesTypeFromExtension(t *testing.T) {
	doc := New("doc-1", "report.PDF", "/tmp/report.PDF", 1234)
	if doc.Type != "PDF" {
		t.Errorf("type = %q, want extension without the dot", doc.Type)
	}
	if doc.Status != StatusUploaded {
		t.Errorf("status = %q, want %q", doc.Status, StatusUploaded)
	}
}

func TestClone_IsDeep(t *testing.T) {
	doc := New("doc-1", "a.pdf", "", 10)
	doc.Metadata["key"] = "original"
	if err := doc.AddPage(Page{
		Number:  1,
		RawText: "text",
		Chunks: []Chunk{{
			ID:        "c1",
			Text:      "chunk",
			Embedding: []float64{1, 2},
			Metadata:  map[string]any{"k": "v"},
		}},
		Metadata: map[string]any{"page": "meta"},
	}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	clone := doc.Clone()
	clone.Metadata["key"] = "mutated"
	clone.Pages[0].RawText = "mutated"
	clone.Pages[0].Metadata["page"] = "mutated"
	clone.Pages[0].Chunks[0].Embedding[0] = 99
	clone.Pages[0].Chunks[0].Metadata["k"] = "mutated"

	if doc.Metadata["key"] != "original" {
		t.Error("document metadata shared with clone")
	}
	if doc.Pages[0].RawText != "text" {
		t.Error("page text shared with clone")
	}
	if doc.Pages[0].Metadata["page"] != "meta" {
		t.Error("page metadata shared with clone")
	}
	if doc.Pages[0].Chunks[0].Embedding[0] != 1 {
		t.Error("chunk embedding shared with clone")
	}
	if doc.Pages[0].Chunks[0].Metadata["k"] != "v" {
		t.Error("chunk metadata shared with clone")
	}
}

func TestAddPage_RejectsDuplicateNumbers(t *testing.T) {
	doc := New("doc-1", "a.pdf", "", 10)
	if err := doc.AddPage(Page{Number: 1}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := doc.AddPage(Page{Number: 1}); err == nil {
		t.Error("expected duplicate page number error")
	}
	if idx := doc.PageByNumber(2); idx != -1 {
		t.Errorf("PageByNumber(2) = %d, want -1", idx)
	}
}

func TestChunkCount(t *testing.T) {
	doc := New("doc-1", "a.pdf", "", 10)
	_ = doc.AddPage(Page{Number: 1, Chunks: []Chunk{{ID: "a"}, {ID: "b"}}})
	_ = doc.AddPage(Page{Number: 2, Chunks: []Chunk{{ID: "c"}}})
	if n := doc.ChunkCount(); n != 3 {
		t.Errorf("ChunkCount = %d, want 3", n)
	}
}
