package handlers

import (
	"errors"
	"log"
	"net/http"

	"mock-fcm/dispatch"
	"mock-fcm/middleware"
	"mock-fcm/store"

	"github.com/gin-gonic/gin"
)

// SendHandler serves POST /fcm/send.
func SendHandler(e *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Presence only; the credential itself is never checked.
		_, authPresent := c.Request.Header["Authorization"]

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
			return
		}

		resp, err := e.SendRaw(c.Request.Context(), authPresent, flattenHeaders(c.Request), body)
		if err != nil {
			var verr *store.ValidationError
			switch {
			case errors.Is(err, dispatch.ErrUnauthorized):
				c.AbortWithStatus(http.StatusUnauthorized)
			case errors.As(err, &verr):
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			default:
				log.Printf("[Send] Error dispatching request %s: %v", middleware.GetRequestID(c), err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// flattenHeaders turns the request headers into a name -> value map, keeping
// the last value of repeated headers. Go moves Host out of the header map,
// so it is put back.
func flattenHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[len(values)-1]
		}
	}
	if r.Host != "" {
		headers["Host"] = r.Host
	}
	return headers
}
