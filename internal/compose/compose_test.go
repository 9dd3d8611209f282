package compose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"worklens/internal/catalog"
	"worklens/internal/citation"
)

func TestContext_ContainsDirectiveTreeAndPrompt(t *testing.T) {
	files := []catalog.SourceFile{
		{Path: "src/App.tsx", Content: "export default function App() {}"},
		{Path: "README.md", Content: "# readme"},
	}
	got := Context(files, "summarize this project", DefaultCaps)

	if !strings.Contains(got, citation.Directive) {
		t.Fatalf("context must embed the citation directive")
	}
	if !strings.Contains(got, "src/\n") || !strings.Contains(got, "App.tsx") {
		t.Fatalf("context must include the workspace tree:\n%s", got)
	}
	if !strings.Contains(got, "--- README.md ---") {
		t.Fatalf("context must include file content blocks")
	}
	if !strings.HasSuffix(got, "summarize this project") {
		t.Fatalf("context must end with the user prompt")
	}
}

func TestCaps_Apply(t *testing.T) {
	caps := Caps{MaxFiles: 2, MaxFileChars: 4}
	files := []catalog.SourceFile{
		{Path: "a", Content: "123456"},
		{Path: "b", Content: "12"},
		{Path: "c", Content: "x"},
	}
	got := caps.Apply(files)
	if len(got) != 2 {
		t.Fatalf("file count is a hard cap, got %d", len(got))
	}
	if got[0].Content != "1234" {
		t.Fatalf("content must be truncated to the cap, got %q", got[0].Content)
	}
	if got[1].Content != "12" {
		t.Fatalf("short content untouched, got %q", got[1].Content)
	}
}

func TestCollect_OrderAndCaps(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.ts": "alpha",
		"b.ts": "bravo-long-content",
		"c.ts": "charlie",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Collect(context.Background(), dir, []string{"c.ts", "a.ts", "missing.ts", "b.ts"}, Caps{MaxFiles: 50, MaxFileChars: 5})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("missing files are skipped silently, got %d entries", len(got))
	}
	if got[0].Path != "c.ts" || got[1].Path != "a.ts" || got[2].Path != "b.ts" {
		t.Fatalf("input order must be preserved: %+v", got)
	}
	if got[2].Content != "bravo" {
		t.Fatalf("per-file char cap must truncate, got %q", got[2].Content)
	}
}

func TestCollect_FileCountCap(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 4; i++ {
		name := string(rune('a'+i)) + ".ts"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, name)
	}
	got, err := Collect(context.Background(), dir, paths, Caps{MaxFiles: 2, MaxFileChars: 100})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MaxFiles is a hard cap, got %d", len(got))
	}
}
