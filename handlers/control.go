package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mock-fcm/dispatch"
	"mock-fcm/middleware"
	"mock-fcm/store"

	"github.com/gin-gonic/gin"
)

// ErrorTokensHandler serves GET, POST and PUT /error-tokens. POST and PUT
// upsert the posted entries (PUT ?replace=true swaps the whole registry);
// every method answers with the full registry.
func ErrorTokensHandler(e *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			writeErrorTokens(c, e)
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
			return
		}

		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil || isEmptyJSON(parsed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No (or empty) JSON data found"})
			return
		}
		if _, ok := parsed.([]any); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a list"})
			return
		}

		var entries []store.ErrorEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid error token entry: " + err.Error()})
			return
		}

		replace := c.Request.Method == http.MethodPut && c.Query("replace") == "true"
		registry, err := e.ConfigureErrors(entries, replace)
		if err != nil {
			var verr *store.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			log.Printf("[ErrorTokens] Failed to configure (%s): %v", middleware.GetRequestID(c), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to configure error tokens"})
			return
		}

		c.JSON(http.StatusOK, registry)
	}
}

func writeErrorTokens(c *gin.Context, e *dispatch.Engine) {
	registry, err := e.ErrorTokens()
	if err != nil {
		log.Printf("[ErrorTokens] Failed to read registry: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read error tokens"})
		return
	}
	c.JSON(http.StatusOK, registry)
}

// isEmptyJSON reports whether v is a falsy JSON value: null, false, 0, "",
// [] or {}.
func isEmptyJSON(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// ResetHandler clears the error registry and the activity log.
func ResetHandler(e *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := e.Reset(); err != nil {
			log.Printf("[Reset] Failed (%s): %v", middleware.GetRequestID(c), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset"})
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

// ActivityHandler returns every activity record in append order.
func ActivityHandler(e *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := e.Activity()
		if err != nil {
			log.Printf("[Activity] Failed to read log (%s): %v", middleware.GetRequestID(c), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read activity"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": records})
	}
}

func HealthHandler(e *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := e.Stats()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"error_tokens":     stats.ErrorTokens,
			"activity_records": stats.ActivityRecords,
		})
	}
}
