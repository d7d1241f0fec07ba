package whatsapp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/pkg/response"
)

// PairingQRHandler serves the current pairing code as a PNG while the device is unlinked.
func PairingQRHandler(s *Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		png, ok := s.PairingQR()
		if !ok {
			response.NotFound(c, "no pairing code pending")
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", png)
	}
}
