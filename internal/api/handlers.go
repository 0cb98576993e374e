package api

import (
	"net/http"
	"strconv"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"
	"coupon-system/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type handler struct {
	svc     Services
	lockTTL time.Duration
	log     zerolog.Logger
}

// writeError maps a domain error to its status. Internal errors are logged
// and reported without detail.
func (h *handler) writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Ctx(c.Request.Context(), h.log).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": apperrors.KindOf(err).String()})
}

func (h *handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return false
	}
	return true
}

func (h *handler) objectID(c *gin.Context, raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		h.writeError(c, apperrors.ErrInvalidID)
		return primitive.NilObjectID, false
	}
	return id, true
}

// createBook handles POST /api/coupons
func (h *handler) createBook(c *gin.Context) {
	var req model.CreateCouponBookRequest
	if !h.bind(c, &req) {
		return
	}
	book, err := h.svc.Pool.CreateBook(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// uploadCodes handles POST /api/coupons/codes
func (h *handler) uploadCodes(c *gin.Context) {
	var req model.UploadCodesRequest
	if !h.bind(c, &req) {
		return
	}
	bookID, ok := h.objectID(c, req.CouponBookID)
	if !ok {
		return
	}
	res, err := h.svc.Pool.UploadExplicit(c.Request.Context(), bookID, req.Codes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// generateCodes handles POST /api/coupons/random-codes
func (h *handler) generateCodes(c *gin.Context) {
	var req model.GenerateCodesRequest
	if !h.bind(c, &req) {
		return
	}
	bookID, ok := h.objectID(c, req.CouponBookID)
	if !ok {
		return
	}
	res, err := h.svc.Pool.Generate(c.Request.Context(), bookID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.JobID != nil {
		c.JSON(http.StatusAccepted, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// assignRandom handles POST /api/coupons/assign
func (h *handler) assignRandom(c *gin.Context) {
	var req model.AssignRandomRequest
	if !h.bind(c, &req) {
		return
	}
	bookID, ok := h.objectID(c, req.CouponBookID)
	if !ok {
		return
	}
	res, err := h.svc.Assignment.AssignRandom(c.Request.Context(), req.UserID, bookID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// assignSpecific handles POST /api/coupons/assign/:code
func (h *handler) assignSpecific(c *gin.Context) {
	var req model.UserRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Assignment.AssignSpecific(c.Request.Context(), req.UserID, c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// lock handles POST /api/coupons/lock/:code
func (h *handler) lock(c *gin.Context) {
	var req model.UserRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Redemption.Lock(c.Request.Context(), c.Param("code"), req.UserID, h.lockTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// unlock handles POST /api/coupons/unlock/:code
func (h *handler) unlock(c *gin.Context) {
	var req model.UserRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Redemption.Unlock(c.Request.Context(), c.Param("code"), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// redeem handles POST /api/coupons/redeem/:code
func (h *handler) redeem(c *gin.Context) {
	var req model.UserRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Redemption.Redeem(c.Request.Context(), c.Param("code"), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// userCoupons handles GET /api/coupons/user/:id
func (h *handler) userCoupons(c *gin.Context) {
	views, err := h.svc.Assignment.UserCoupons(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) getBook(c *gin.Context) {
	id, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}
	book, err := h.svc.Pool.GetBook(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *handler) deleteBook(c *gin.Context) {
	id, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.svc.Pool.DeleteBook(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) restoreBook(c *gin.Context) {
	id, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}
	book, err := h.svc.Pool.RestoreBook(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *handler) getJob(c *gin.Context) {
	id, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}
	job, err := h.svc.Pool.GetJob(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// listTransactions handles GET /api/transactions?userId=&code=&action=&limit=
func (h *handler) listTransactions(c *gin.Context) {
	filter := model.TransactionFilter{
		UserID: c.Query("userId"),
		Code:   c.Query("code"),
		Action: model.Action(c.Query("action")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	txs, err := h.svc.Ledger.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
