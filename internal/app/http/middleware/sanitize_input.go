package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"sprynt-api/internal/api/apierr"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

const maxSanitizedBody = 1 << 20

// SanitizeInput strips markup from every string in a JSON object body,
// including strings nested in arrays and objects.
func SanitizeInput() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		buf, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSanitizedBody))
		if err != nil {
			apierr.Respond(c, nil, apierr.Invalid("Invalid body"))
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body map[string]any
		if err := json.Unmarshal(buf, &body); err != nil {
			apierr.Respond(c, nil, apierr.Invalid("Malformed JSON"))
			return
		}
		for k, v := range body {
			body[k] = sanitize(policy, v)
		}

		clean, _ := json.Marshal(body)
		c.Request.Body = io.NopCloser(bytes.NewReader(clean))
		c.Request.ContentLength = int64(len(clean))
		c.Next()
	}
}

func sanitize(p *bluemonday.Policy, v any) any {
	switch t := v.(type) {
	case string:
		return p.Sanitize(t)
	case []any:
		for i := range t {
			t[i] = sanitize(p, t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = sanitize(p, t[k])
		}
		return t
	default:
		return v
	}
}
