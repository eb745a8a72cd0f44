package generation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func candidate(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		assert.Empty(t, r.URL.RawQuery)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, candidate(`{"pixels":[{"x":0,"y":0,"color":"#FF0000"}]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k-1", Model: "gemini-2.0-flash"}, quietLog())
	out, err := g.Generate(context.Background(), "system", "draw a slime")
	require.NoError(t, err)

	assert.JSONEq(t, `{"pixels":[{"x":0,"y":0,"color":"#FF0000"}]}`, string(out))
	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "k-1", gotKey)
	assert.Equal(t, "draw a slime", gjson.GetBytes(gotBody, "contents.0.parts.0.text").String())
	assert.Equal(t, "system", gjson.GetBytes(gotBody, "systemInstruction.parts.0.text").String())
	assert.Equal(t, "application/json", gjson.GetBytes(gotBody, "generationConfig.responseMimeType").String())
	assert.Equal(t, int64(8192), gjson.GetBytes(gotBody, "generationConfig.maxOutputTokens").Int())
}

func TestGeminiProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"upstream error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"non json text", http.StatusOK, candidate("here is your sprite!")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k"}, quietLog())
			_, err := g.Generate(context.Background(), "s", "u")
			assert.ErrorIs(t, err, ErrProvider)
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(32, 16, []string{"#000000", "#FFFFFF"})
	assert.Contains(t, p, "Canvas size: 32x16 pixels.")
	assert.Contains(t, p, "x ranges from 0 to 31, y ranges from 0 to 15.")
	assert.Contains(t, p, "Restrict colors to this palette: #000000, #FFFFFF.")

	assert.Contains(t, SystemPrompt(8, 8, nil), "Choose an appropriate pixel art color palette.")
}

func TestPromptBuilders(t *testing.T) {
	p := InterpolatePrompt(json.RawMessage(`[ {"x": 1} ]`), nil, 4)
	assert.Contains(t, p, "Generate 4 intermediate animation frames.")
	assert.Contains(t, p, `Start frame pixels: [{"x":1}]`)
	assert.Contains(t, p, "End frame pixels: []")

	existing := make([]json.RawMessage, 80)
	for i := range existing {
		existing[i] = json.RawMessage(`1`)
	}
	pal := PalettePrompt("forest", 8, existing)
	assert.Contains(t, pal, "with 8 colors")
	assert.Contains(t, pal, "Theme: forest")
	var ref string
	for _, line := range strings.Split(pal, "\n") {
		if strings.HasPrefix(line, "Existing pixels for reference: ") {
			ref = strings.TrimPrefix(line, "Existing pixels for reference: ")
		}
	}
	assert.Equal(t, int64(maxPaletteReferencePixels), gjson.Get(ref, "#").Int())

	assert.NotContains(t, PalettePrompt("", 16, nil), "Theme:")
	assert.Contains(t, AutocompletePrompt(json.RawMessage(`[]`)), "Existing pixels: []")
}

func TestGeminiErrorsDoNotCarryAPIKey(t *testing.T) {
	g := NewGemini(GeminiConfig{BaseURL: "http://127.0.0.1:1", APIKey: "SUPERSECRETKEY"}, quietLog())
	_, err := g.Generate(context.Background(), "system", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}
