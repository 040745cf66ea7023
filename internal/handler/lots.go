package handler

import (
	"errors"
	"net/http"

	"github.com/augustodevcode/bidexpert-engine/internal/apierror"
	"github.com/augustodevcode/bidexpert-engine/internal/dto"
	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LotsHandler struct{ svc service.LotService }

func NewLotsHandler(svc service.LotService) *LotsHandler { return &LotsHandler{svc: svc} }

// Get godoc
// @Summary      Lot detail
// @Description  Current price tuple, advertised minimum bid and active-stage discount.
// @Tags         lots
// @Produce      json
// @Param        id path string true "Lot UUID or public id"
// @Success      200 {object} dto.LotResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/lots/{id} [get]
func (h *LotsHandler) Get(c *gin.Context) {
	raw := c.Param("id")

	var resp *dto.LotResponse
	var err error
	if id, parseErr := uuid.Parse(raw); parseErr == nil {
		resp, err = h.svc.Get(c.Request.Context(), id)
	} else {
		resp, err = h.svc.GetByPublicID(c.Request.Context(), raw)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("lot not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load lot"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Finalize godoc
// @Summary      Finalize a lot
// @Description  Settles an open lot after its final stage ends: sold to the highest bidder or unsold on an empty ledger. Idempotent.
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.FinalizeLotResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/lots/{id}/finalize [post]
func (h *LotsHandler) Finalize(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	resp, err := h.svc.Finalize(c.Request.Context(), id)
	if err != nil {
		writeLotError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Suspend godoc
// @Summary      Suspend an open lot
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.LotResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/lots/{id}/suspend [post]
func (h *LotsHandler) Suspend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	resp, err := h.svc.Suspend(c.Request.Context(), id)
	if err != nil {
		writeLotError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancel a lot
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.LotResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/lots/{id}/cancel [post]
func (h *LotsHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		writeLotError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Relist godoc
// @Summary      Relist a settled lot
// @Description  Creates a fresh copy of a sold or unsold lot with a clean ledger; the original becomes relisted.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string               true "Lot UUID"
// @Param        body body dto.RelistLotRequest true "New pricing"
// @Success      201  {object} dto.LotResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/lots/{id}/relist [post]
func (h *LotsHandler) Relist(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid lot id"))
		return
	}
	var req dto.RelistLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Relist(c.Request.Context(), id, req)
	if err != nil {
		writeLotError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func writeLotError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("lot not found"))
	case errors.Is(err, service.ErrNotFinalizable):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, service.ErrContention):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
	case errors.Is(err, service.ErrIntegrity):
		c.JSON(http.StatusInternalServerError, apierror.New("lot data is inconsistent, settlement halted"))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}
