package progress

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Renderer writes a single event.
type Renderer interface {
	Render(e Event) error
}

// Consume drains events into r until the stream closes. The returned channel
// is closed once every event has been rendered.
func Consume(events <-chan Event, r Renderer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			_ = r.Render(e)
		}
	}()
	return done
}

// TextRenderer prints styled, human-readable lines.
type TextRenderer struct {
	w      io.Writer
	styles map[Level]lipgloss.Style
	symbol map[Level]string
}

// NewTextRenderer creates a TextRenderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{
		w: w,
		styles: map[Level]lipgloss.Style{
			LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
			LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			LevelError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		},
		symbol: map[Level]string{
			LevelInfo:    "▶",
			LevelSuccess: "✓",
			LevelWarn:    "!",
			LevelError:   "✗",
		},
	}
}

func (r *TextRenderer) Render(e Event) error {
	style, ok := r.styles[e.Level]
	if !ok {
		style = r.styles[LevelInfo]
	}
	symbol := r.symbol[e.Level]
	if symbol == "" {
		symbol = "·"
	}
	line := fmt.Sprintf("%s %s %s", e.Time.Format("15:04:05"), symbol, e.Message)
	_, err := fmt.Fprintln(r.w, style.Render(line))
	return err
}

// JSONRenderer writes one JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer creates a JSONRenderer writing to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(e Event) error {
	return r.enc.Encode(e)
}
