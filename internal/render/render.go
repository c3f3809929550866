package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Standard glamour styles
const (
	StyleDark       = "dark"
	StyleLight      = "light"
	StyleDracula    = "dracula"
	StyleTokyoNight = "tokyo-night"
	StyleNoTTY      = "notty"
	StyleASCII      = "ascii"
)

// StandardStyles lists the built-in markdown styles.
func StandardStyles() []string {
	return []string{StyleDark, StyleLight, StyleDracula, StyleTokyoNight, StyleNoTTY, StyleASCII}
}

// IsStandardStyle reports whether style names a built-in style rather than a file.
func IsStandardStyle(style string) bool {
	for _, s := range StandardStyles() {
		if s == style {
			return true
		}
	}
	return false
}

// glamour.TermRenderer must not be shared between goroutines, so renderers
// are pooled per option set.
var (
	poolsMu sync.Mutex
	pools   = make(map[Options]*sync.Pool)
)

func poolFor(opts Options) *sync.Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()

	if p, ok := pools[opts]; ok {
		return p
	}
	p := &sync.Pool{}
	pools[opts] = p
	return p
}

func newRenderer(opts Options) (*glamour.TermRenderer, error) {
	styleOpt := glamour.WithStylePath(opts.Style)
	if IsStandardStyle(opts.Style) {
		styleOpt = glamour.WithStandardStyle(opts.Style)
	}

	rendererOpts := []glamour.TermRendererOption{
		styleOpt,
		glamour.WithWordWrap(opts.Width),
	}
	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}

	r, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r, nil
}

// Markdown renders content for terminal display.
func Markdown(content string, opts Options) (string, error) {
	pool := poolFor(opts)
	r, _ := pool.Get().(*glamour.TermRenderer)
	if r == nil {
		var err error
		if r, err = newRenderer(opts); err != nil {
			return "", err
		}
	}
	defer pool.Put(r)

	return r.Render(content)
}

// MessageText renders the text of a chat message, trimmed of the blank
// margin glamour adds. The raw text is returned if rendering fails.
func MessageText(text string, opts Options) string {
	out, err := Markdown(text, opts)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// PoolCount returns the number of distinct option sets rendered so far.
func PoolCount() int {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	return len(pools)
}
