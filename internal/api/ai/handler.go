package ai

import (
	"encoding/json"
	"errors"
	"net/http"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/infra/generation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPaletteSize = 16

type GenerationObserver interface {
	GenerationCall(feature, result string)
}

type Handler struct {
	generator generation.Generator
	gate      *credits.Gate
	ledger    *credits.Ledger
	obs       GenerationObserver
	log       *logrus.Entry
}

func NewHandler(generator generation.Generator, gate *credits.Gate, ledger *credits.Ledger, obs GenerationObserver, log *logrus.Entry) *Handler {
	return &Handler{generator: generator, gate: gate, ledger: ledger, obs: obs, log: log}
}

type canvas struct {
	CanvasWidth  int `json:"canvasWidth" binding:"required,min=1,max=512"`
	CanvasHeight int `json:"canvasHeight" binding:"required,min=1,max=512"`
}

// Generate handles POST /api/ai/generate.
func (h *Handler) Generate(c *gin.Context) {
	var body struct {
		canvas
		Prompt  string   `json:"prompt" binding:"required,max=2000"`
		Palette []string `json:"palette"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("prompt, canvasWidth and canvasHeight are required"))
		return
	}

	system := generation.SystemPrompt(body.CanvasWidth, body.CanvasHeight, body.Palette)
	h.run(c, credits.FeatureGenerate, 1, system, body.Prompt)
}

// Interpolate handles POST /api/ai/interpolate. The price scales with the
// number of frames, so the gate runs here rather than in middleware.
func (h *Handler) Interpolate(c *gin.Context) {
	var body struct {
		canvas
		StartFrame json.RawMessage `json:"startFrame" binding:"required"`
		EndFrame   json.RawMessage `json:"endFrame" binding:"required"`
		FrameCount int             `json:"frameCount" binding:"required,min=1,max=60"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("startFrame, endFrame, frameCount and canvas size are required"))
		return
	}

	cost, err := credits.CostOf(credits.FeatureInterpolate, body.FrameCount)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	if err := h.gate.EnsureAffordable(c.Request.Context(), middleware.AccountID(c), cost); err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	system := generation.SystemPrompt(body.CanvasWidth, body.CanvasHeight, nil)
	user := generation.InterpolatePrompt(body.StartFrame, body.EndFrame, body.FrameCount)
	h.run(c, credits.FeatureInterpolate, body.FrameCount, system, user)
}

// Palette handles POST /api/ai/palette.
func (h *Handler) Palette(c *gin.Context) {
	var body struct {
		ExistingPixels []json.RawMessage `json:"existingPixels"`
		Theme          string            `json:"theme" binding:"max=200"`
		ColorCount     int               `json:"colorCount" binding:"omitempty,min=2,max=64"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("Invalid palette request"))
		return
	}
	if body.ColorCount == 0 {
		body.ColorCount = defaultPaletteSize
	}

	system := generation.SystemPrompt(1, 1, nil)
	user := generation.PalettePrompt(body.Theme, body.ColorCount, body.ExistingPixels)
	h.run(c, credits.FeaturePalette, 1, system, user)
}

// Autocomplete handles POST /api/ai/autocomplete.
func (h *Handler) Autocomplete(c *gin.Context) {
	var body struct {
		canvas
		ExistingPixels json.RawMessage `json:"existingPixels" binding:"required"`
		Palette        []string        `json:"palette"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("existingPixels and canvas size are required"))
		return
	}

	system := generation.SystemPrompt(body.CanvasWidth, body.CanvasHeight, body.Palette)
	user := generation.AutocompletePrompt(body.ExistingPixels)
	h.run(c, credits.FeatureAutocomplete, 1, system, user)
}

// run calls the provider and debits only after it succeeded. A debit that
// loses a race with another request discards the result with 402.
func (h *Handler) run(c *gin.Context, feature credits.Feature, units int, system, user string) {
	ctx := c.Request.Context()
	accountID := middleware.AccountID(c)
	log := h.log.WithFields(logrus.Fields{"account_id": accountID, "feature": feature})

	cost, err := credits.CostOf(feature, units)
	if err != nil {
		apierr.Respond(c, log, err)
		return
	}

	result, err := h.generator.Generate(ctx, system, user)
	if err != nil {
		h.observe(feature, "error")
		log.WithError(err).Warn("generation failed, nothing debited")
		if !errors.Is(err, generation.ErrProvider) {
			err = apierr.External("generation", err)
		}
		apierr.Respond(c, log, err)
		return
	}
	h.observe(feature, "ok")

	if _, err := h.ledger.Debit(ctx, accountID, cost, string(feature)); err != nil {
		if _, insufficient := credits.AsInsufficient(err); insufficient {
			log.Info("balance changed during generation, result discarded")
		}
		apierr.Respond(c, log, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}

func (h *Handler) observe(feature credits.Feature, result string) {
	if h.obs != nil {
		h.obs.GenerationCall(string(feature), result)
	}
}
