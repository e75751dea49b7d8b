package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/persona/internal/model"
)

func fixtureItems() []model.ContentItem {
	return []model.ContentItem{
		{
			ID:        "p1",
			Kind:      model.KindPost,
			Community: "golang",
			Text:      "Weekend plans\n\nI love quiet weekends coding alone",
			CreatedAt: time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC),
		},
		{
			ID:        "c1",
			Kind:      model.KindComment,
			Community: "mondays",
			Text:      "Ugh, Mondays are awful",
			CreatedAt: time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestCompiler_RenderContent(t *testing.T) {
	c := NewCompiler(500, 8000)

	got := c.RenderContent(fixtureItems())
	want := "[POST p1] [2024-03-09] r/golang: Weekend plans I love quiet weekends coding alone\n" +
		"[COMMENT c1] [2024-03-11] r/mondays: Ugh, Mondays are awful\n"

	if got != want {
		t.Errorf("Unexpected content:\nwant %q\ngot  %q", want, got)
	}
}

func TestCompiler_RenderItem_PerItemCap(t *testing.T) {
	c := NewCompiler(20, 8000)

	item := model.ContentItem{
		ID:        "c9",
		Kind:      model.KindComment,
		Community: "test",
		Text:      "abcdefghijklmnopqrstuvwxyz",
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	got := c.RenderItem(item)
	want := "[COMMENT c9] [2024-01-02] r/test: abcdefghijklmnopq..."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCompiler_RenderItem_ZeroTime(t *testing.T) {
	c := NewCompiler(0, 0)
	got := c.RenderItem(model.ContentItem{ID: "x", Kind: model.KindPost, Community: "c", Text: "t"})
	if got != "[POST x] [unknown date] r/c: t" {
		t.Errorf("Unexpected render: %q", got)
	}
}

func TestCompiler_Compile_NoTruncation(t *testing.T) {
	c := NewCompiler(500, 8000)

	bundle := c.Compile(fixtureItems())

	if bundle.Truncated {
		t.Error("Expected no truncation")
	}
	if bundle.Items != 2 {
		t.Errorf("Expected 2 items, got %d", bundle.Items)
	}
	if !strings.Contains(bundle.Text, "[POST p1] [2024-03-09] r/golang:") {
		t.Error("Expected rendered content in prompt")
	}
	if strings.Contains(bundle.Text, "content truncated") {
		t.Error("Unexpected truncation marker")
	}
	for _, field := range model.CitedFields() {
		if !strings.Contains(bundle.Text, `"`+field+`"`) {
			t.Errorf("Schema is missing field %s", field)
		}
	}
}

func TestCompiler_Compile_TotalCap(t *testing.T) {
	c := NewCompiler(500, 100)

	var items []model.ContentItem
	for i := 0; i < 10; i++ {
		items = append(items, model.ContentItem{
			ID:        "id",
			Kind:      model.KindComment,
			Community: "c",
			Text:      strings.Repeat("x", 50),
		})
	}

	bundle := c.Compile(items)
	if !bundle.Truncated {
		t.Fatal("Expected truncation")
	}
	if bundle.CutAt != 100 {
		t.Errorf("Expected cut at 100, got %d", bundle.CutAt)
	}
	if bundle.ContentChars <= 100 {
		t.Errorf("Expected content chars > 100, got %d", bundle.ContentChars)
	}

	content := c.RenderContent(items)
	if !strings.Contains(bundle.Text, content[:100]+TruncationMarker) {
		t.Error("Expected content cut at 100 chars followed by the truncation marker")
	}
}

func TestCompiler_Compile_Deterministic(t *testing.T) {
	c := NewCompiler(500, 8000)
	a := c.Compile(fixtureItems())
	b := c.Compile(fixtureItems())
	if a != b {
		t.Error("Expected identical bundles for identical input")
	}
}
