package handler

import (
	"errors"
	"net/http"

	"github.com/augustodevcode/bidexpert-engine/internal/apierror"
	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuctionsHandler struct{ svc service.StageService }

func NewAuctionsHandler(svc service.StageService) *AuctionsHandler {
	return &AuctionsHandler{svc: svc}
}

// ActiveStage godoc
// @Summary      Active pricing stage
// @Description  Which stage of the auction's timeline is live right now, if any.
// @Tags         auctions
// @Produce      json
// @Param        id path string true "Auction UUID"
// @Success      200 {object} dto.ActiveStageResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/auctions/{id}/active-stage [get]
func (h *AuctionsHandler) ActiveStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid auction id"))
		return
	}
	resp, err := h.svc.ActiveStage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("auction not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("failed to resolve active stage"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
