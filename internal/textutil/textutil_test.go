package textutil

import (
	"reflect"
	"testing"
)

func TestTitleFromStem(t *testing.T) {
	if got := TitleFromStem("sunset_over-bay"); got != "Sunset Over Bay" {
		t.Fatalf("unexpected title: %q", got)
	}
	if got := TitleFromStem("IMG_2024_001"); got != "Img 2024 001" {
		t.Fatalf("unexpected title with digits: %q", got)
	}
	if got := TitleFromStem("   "); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}

func TestTagTokensSkipsNumbers(t *testing.T) {
	got := TagTokens("harbor_2023_morning-fog")
	want := []string{"harbor", "morning", "fog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens: got %v want %v", got, want)
	}
}

func TestDedupTagsPreservesOrder(t *testing.T) {
	got := DedupTags([]string{"Sky", "sea", " sky ", "", "Sea", "cliff"})
	want := []string{"sky", "sea", "cliff"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dedup: got %v want %v", got, want)
	}
}

func TestCleanSentence(t *testing.T) {
	if got := CleanSentence("a quiet harbor", "", true); got != "A quiet harbor." {
		t.Fatalf("unexpected sentence: %q", got)
	}
	if got := CleanSentence("", "fallback text", false); got != "Fallback text" {
		t.Fatalf("fallback not applied: %q", got)
	}
	if got := CleanSentence("done!", "", true); got != "Done!" {
		t.Fatalf("terminal punctuation mishandled: %q", got)
	}
}
