package models

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestDocumentInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      DocumentInput
		wantErr bool
	}{
		{"valid", DocumentInput{Title: "A", Content: "B"}, false},
		{"empty title", DocumentInput{Title: "", Content: "B"}, true},
		{"empty content", DocumentInput{Title: "A", Content: " \n"}, true},
		{"bad metadata", DocumentInput{Title: "A", Content: "B", Metadata: Metadata{"f": func() {}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentPatch_Diff(t *testing.T) {
	doc := &Document{ID: 1, Title: "A", Content: "B", Metadata: Metadata{"k": "v"}}
	same := Metadata{"k": "v"}
	other := Metadata{"k": "w"}

	tests := []struct {
		name      string
		patch     DocumentPatch
		wantEmpty bool
		wantText  bool
	}{
		{"nothing provided", DocumentPatch{}, true, false},
		{"same values", DocumentPatch{Title: strPtr("A"), Content: strPtr("B"), Metadata: &same}, true, false},
		{"metadata only", DocumentPatch{Metadata: &other}, false, false},
		{"title change", DocumentPatch{Title: strPtr("A2"), Metadata: &same}, false, true},
		{"content change", DocumentPatch{Content: strPtr("B2")}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.patch.Diff(doc)
			if d.IsEmpty() != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", d.IsEmpty(), tt.wantEmpty)
			}
			if d.TouchesText() != tt.wantText {
				t.Errorf("TouchesText() = %v, want %v", d.TouchesText(), tt.wantText)
			}
		})
	}
}

func TestDocumentPatch_Apply(t *testing.T) {
	doc := &Document{ID: 1, Title: "A", Content: "B"}
	meta := Metadata{"tag": "x"}
	out := DocumentPatch{Content: strPtr("C"), Metadata: &meta}.Apply(doc)
	if out.Title != "A" || out.Content != "C" || out.Metadata["tag"] != "x" {
		t.Errorf("unexpected result %+v", out)
	}
	if doc.Content != "B" {
		t.Error("Apply must not mutate the input")
	}
}

func TestDocumentPatch_ValidateEmptyProvided(t *testing.T) {
	if err := (DocumentPatch{Title: strPtr("")}).Validate(); err == nil {
		t.Error("expected error for empty title")
	}
	if err := (DocumentPatch{Content: strPtr("ok")}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEmbeddingText(t *testing.T) {
	got := EmbeddingText("Go", "Gophers")
	if got != "Title: Go\n\nContent: Gophers" {
		t.Errorf("EmbeddingText() = %q", got)
	}
	if !strings.HasPrefix(got, "Title: ") {
		t.Error("expected title label")
	}
}
