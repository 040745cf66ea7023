package handler

import (
	"errors"
	"net/http"

	"github.com/augustodevcode/bidexpert-engine/internal/apierror"
	"github.com/augustodevcode/bidexpert-engine/internal/dto"
	"github.com/augustodevcode/bidexpert-engine/internal/middleware"
	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BidsHandler struct{ svc service.BiddingService }

func NewBidsHandler(svc service.BiddingService) *BidsHandler { return &BidsHandler{svc: svc} }

// PlaceBid godoc
// @Summary      Place a bid on a lot
// @Description  Validates and commits a bid atomically, then runs the auto-bid resolver. Rejections come back as 409 with a structured reason, never as validation 5xx.
// @Tags         bids
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.PlaceBidRequest true "Lot and amount"
// @Success      201  {object} dto.PlaceBidResponse
// @Failure      409  {object} dto.PlaceBidResponse
// @Failure      503  {object} apierror.APIError
// @Router       /v1/bids [post]
func (h *BidsHandler) PlaceBid(c *gin.Context) {
	var req dto.PlaceBidRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("invalid user id in token"))
		return
	}

	resp, err := h.svc.PlaceBid(c.Request.Context(), userID, claims.DisplayName, req)
	if err != nil {
		writeBidError(c, err)
		return
	}
	if !resp.Accepted {
		c.JSON(http.StatusConflict, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SetAutoBid godoc
// @Summary      Register or update an auto-bid ceiling
// @Description  Registers a standing proxy for the caller on the lot. Passive: no bid is placed until another bidder outbids the proxy owner.
// @Tags         bids
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string               true "Lot UUID"
// @Param        body body dto.SetAutoBidRequest true "Ceiling amount"
// @Success      200  {object} dto.SetAutoBidResponse
// @Failure      409  {object} dto.SetAutoBidResponse
// @Failure      503  {object} apierror.APIError
// @Router       /v1/lots/{id}/auto-bid [post]
func (h *BidsHandler) SetAutoBid(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	var req dto.SetAutoBidRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("invalid user id in token"))
		return
	}

	resp, err := h.svc.SetAutoBid(c.Request.Context(), userID, claims.DisplayName, lotID, req)
	if err != nil {
		writeBidError(c, err)
		return
	}
	if !resp.Accepted {
		c.JSON(http.StatusConflict, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary      Bid history for a lot
// @Description  Returns the lot's append-only ledger, newest first or highest first.
// @Tags         bids
// @Produce      json
// @Param        id    path  string true  "Lot UUID"
// @Param        limit query int    false "Max entries (default 20)"
// @Param        order query string false "newest | highest"
// @Success      200   {object} dto.BidHistoryResponse
// @Failure      400   {object} apierror.APIError
// @Router       /v1/lots/{id}/bids [get]
func (h *BidsHandler) History(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	var filter dto.BidHistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.BidHistory(c.Request.Context(), lotID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load bid history"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeBidError maps service errors to transport codes. Contention is a 503
// with Retry-After so well-behaved clients back off and re-read the price.
func writeBidError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrContention):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
	case errors.Is(err, service.ErrIntegrity):
		c.JSON(http.StatusInternalServerError, apierror.New("lot data is inconsistent, bidding halted"))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}
