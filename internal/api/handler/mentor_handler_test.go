package handler

import (
	"strings"
	"testing"
)

func TestChunkGuidance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		text       string
		size       int
		wantChunks int
	}{
		{name: "empty", text: "", size: 10, wantChunks: 0},
		{name: "shorter than size", text: "Check the sign.", size: 48, wantChunks: 1},
		{name: "breaks after whitespace", text: "one two three four five", size: 5, wantChunks: 4},
		{name: "long word stays whole", text: "supercalifragilistic word", size: 4, wantChunks: 2},
		{name: "multibyte runes", text: "¿Qué devuelve input()? Piénsalo.", size: 8, wantChunks: 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks := ChunkGuidance(tt.text, tt.size)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("expected %d chunks, got %d: %q", tt.wantChunks, len(chunks), chunks)
			}
			if joined := strings.Join(chunks, ""); joined != tt.text {
				t.Fatalf("expected chunks to reassemble %q, got %q", tt.text, joined)
			}
		})
	}
}
