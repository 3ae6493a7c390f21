package youtube

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/youtube-search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing q parameter"})
		return
	}

	videos, err := h.client.Search(c.Request.Context(), q)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("youtube search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "YouTube search error"})
		return
	}
	c.JSON(http.StatusOK, videos)
}
