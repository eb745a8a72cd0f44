package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const maxPaletteReferencePixels = 50

// SystemPrompt describes the canvas and the output formats the model must
// answer with.
func SystemPrompt(canvasWidth, canvasHeight int, palette []string) string {
	paletteClause := "Choose an appropriate pixel art color palette."
	if len(palette) > 0 {
		paletteClause = "Restrict colors to this palette: " + strings.Join(palette, ", ") + "."
	}

	return strings.Join([]string{
		"You are a pixel art generation AI for Sprynt.",
		fmt.Sprintf("Canvas size: %dx%d pixels.", canvasWidth, canvasHeight),
		"Coordinates start at (0,0) in the top-left corner.",
		fmt.Sprintf("x ranges from 0 to %d, y ranges from 0 to %d.", canvasWidth-1, canvasHeight-1),
		paletteClause,
		"",
		"CRITICAL: Return ONLY valid JSON. No markdown, no code fences, no explanation.",
		`Output format for sprites: { "pixels": [{"x": 0, "y": 0, "color": "#RRGGBB"}, ...], "palette": ["#RRGGBB", ...], "metadata": {"description": "..."} }`,
		`Output format for frames: { "frames": [{"index": 0, "pixels": [...], "durationMs": 83}, ...], "fps": 12, "palette": [...], "metadata": {"animationType": "...", "frameCount": N} }`,
		`Output format for palette: { "colors": [{"hex": "#RRGGBB", "name": "..."}, ...], "theme": "...", "description": "..." }`,
		`Output format for autocomplete: { "addedPixels": [{"x": 0, "y": 0, "color": "#RRGGBB"}, ...], "description": "..." }`,
		"",
		"Only include non-transparent pixels. Each pixel must have valid x, y within canvas bounds and a valid hex color.",
	}, "\n")
}

func InterpolatePrompt(startFrame, endFrame json.RawMessage, frameCount int) string {
	return strings.Join([]string{
		fmt.Sprintf("Generate %d intermediate animation frames.", frameCount),
		"Start frame pixels: " + compact(startFrame),
		"End frame pixels: " + compact(endFrame),
		"Smoothly transition positions and colors between start and end.",
	}, "\n")
}

func PalettePrompt(theme string, colorCount int, existing []json.RawMessage) string {
	lines := []string{fmt.Sprintf("Suggest a pixel art color palette with %d colors.", colorCount)}
	if theme != "" {
		lines = append(lines, "Theme: "+theme)
	}
	if len(existing) > 0 {
		if len(existing) > maxPaletteReferencePixels {
			existing = existing[:maxPaletteReferencePixels]
		}
		ref, _ := json.Marshal(existing)
		lines = append(lines, "Existing pixels for reference: "+string(ref))
	}
	lines = append(lines, "Return colors as hex values with descriptive names.")
	return strings.Join(lines, "\n")
}

func AutocompletePrompt(existing json.RawMessage) string {
	return strings.Join([]string{
		"Analyze the existing pixel art and suggest additional pixels to complete it.",
		"Existing pixels: " + compact(existing),
		"Maintain the existing art style. Only add pixels that enhance the design.",
	}, "\n")
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}
