package render

import (
	"strings"
	"sync"
	"testing"

	"github.com/diogo/friendlychat/internal/config"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Width != 80 {
		t.Errorf("expected Width=80, got %d", opts.Width)
	}
	if opts.Style != StyleDark {
		t.Errorf("expected Style='dark', got %s", opts.Style)
	}
	if !opts.EnableEmoji || !opts.PreserveNewLines {
		t.Errorf("expected emoji and newlines enabled, got %+v", opts)
	}
}

func TestOptionsChaining(t *testing.T) {
	opts := DefaultOptions().WithWidth(100).WithStyle(StyleLight)

	if opts.Width != 100 {
		t.Errorf("expected Width=100, got %d", opts.Width)
	}
	if opts.Style != StyleLight {
		t.Errorf("expected Style='light', got %s", opts.Style)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		md        config.MarkdownConfig
		env       string
		wantStyle string
		wantEmoji bool
	}{
		{"defaults", config.DefaultMarkdownConfig(), "", StyleDark, true},
		{"configured style", config.MarkdownConfig{Style: StyleDracula}, "", StyleDracula, false},
		{"empty style keeps default", config.MarkdownConfig{EnableEmoji: true}, "", StyleDark, true},
		{"env wins", config.MarkdownConfig{Style: StyleDracula}, StyleASCII, StyleASCII, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GLAMOUR_STYLE", tt.env)
			opts := OptionsFromConfig(tt.md)
			if opts.Style != tt.wantStyle {
				t.Errorf("Style = %q, want %q", opts.Style, tt.wantStyle)
			}
			if opts.EnableEmoji != tt.wantEmoji {
				t.Errorf("EnableEmoji = %v, want %v", opts.EnableEmoji, tt.wantEmoji)
			}
		})
	}
}

func TestIsStandardStyle(t *testing.T) {
	for _, s := range StandardStyles() {
		if !IsStandardStyle(s) {
			t.Errorf("%s should be standard", s)
		}
	}
	if IsStandardStyle("/tmp/custom.json") {
		t.Error("a path is not a standard style")
	}
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown("**hello** world", DefaultOptions().WithStyle(StyleASCII))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "world") {
		t.Errorf("rendered output lost text: %q", out)
	}
}

func TestMarkdown_BadStylePath(t *testing.T) {
	_, err := Markdown("hi", DefaultOptions().WithStyle("/does/not/exist.json"))
	if err == nil {
		t.Error("expected error for missing style file")
	}
}

func TestMessageText(t *testing.T) {
	out := MessageText("plain text", DefaultOptions().WithStyle(StyleNoTTY))
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("expected trimmed output, got %q", out)
	}
	if !strings.Contains(out, "plain text") {
		t.Errorf("expected text in output, got %q", out)
	}

	// Rendering failures fall back to the raw text.
	if got := MessageText("raw", DefaultOptions().WithStyle("/nope.json")); got != "raw" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

func TestMarkdown_Concurrent(t *testing.T) {
	opts := DefaultOptions().WithStyle(StyleASCII).WithWidth(40)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Markdown("- item one\n- item two", opts); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if PoolCount() == 0 {
		t.Error("expected at least one renderer pool")
	}
}

func TestPalettes(t *testing.T) {
	for _, p := range Palettes() {
		if p.Name == "" || p.Description == "" {
			t.Errorf("palette missing name or description: %+v", p)
		}
		if p.Primary == "" || p.Text == "" || p.Error == "" {
			t.Errorf("palette %s missing colors", p.Name)
		}
	}

	if p, ok := PaletteByName("nord"); !ok || p.Name != "nord" {
		t.Errorf("expected nord palette, got %v %v", p.Name, ok)
	}
	if p, ok := PaletteByName("unknown"); ok || p.Name != TokyoNight.Name {
		t.Errorf("expected default palette for unknown name, got %v %v", p.Name, ok)
	}
	if len(PaletteNames()) != len(Palettes()) {
		t.Error("PaletteNames length mismatch")
	}
}
