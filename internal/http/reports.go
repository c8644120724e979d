package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listOutcomesHandler(repo repository.OutcomesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if repo == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "audit store disabled"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var st model.OutcomeStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.OutcomeStatus(raw)
			if !tmp.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
			}
			st = tmp
		}

		rows, err := repo.List(c.Request().Context(), st, limit, offset)
		if err != nil {
			logger.Log.Error("outcomes list failed", zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
