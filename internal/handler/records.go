package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"eventbridge/internal/repository"
)

// RecordsHandler exposes the published-event ledger for inspection.
type RecordsHandler struct {
	Repo repository.Ledger
}

func (h *RecordsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/records", h.list)
}

func (h *RecordsHandler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	params := repository.ListPublishedParams{Limit: limit, Offset: offset}
	if v := strings.TrimSpace(c.Query("source_id")); v != "" {
		params.SourceID = &v
	}
	if v := strings.TrimSpace(c.Query("group")); v != "" {
		params.GroupingKey = &v
	}

	items, err := h.Repo.ListPublished(c.Request.Context(), params)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := h.Repo.CountPublished(c.Request.Context(), params)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, items, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}
