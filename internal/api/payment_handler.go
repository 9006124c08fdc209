package api

import (
	"errors"
	"net/http"

	"alcyxob/fitness-coach/internal/payment/vnpay"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	premiumService service.PremiumService
	log            *logger.Logger
}

func NewPaymentHandler(premiumService service.PremiumService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{premiumService: premiumService, log: log}
}

type CreatePaymentRequest struct {
	DurationMonths int `json:"durationMonths" binding:"required,min=1"`
}

// gatewayAnswer is the RspCode/Message pair returned to the gateway, plus
// the HTTP status to send it with.
type gatewayAnswer struct {
	status  int
	code    string
	message string
}

// answerFor maps a callback outcome to the gateway contract. Only unexpected
// failures use a non-2xx status so that the gateway retries them.
func answerFor(err error) gatewayAnswer {
	var declined *service.PaymentDeclinedError
	switch {
	case err == nil:
		return gatewayAnswer{http.StatusOK, vnpay.CodeSuccess, "Success"}
	case errors.Is(err, service.ErrInvalidSignature):
		return gatewayAnswer{http.StatusOK, vnpay.CodeInvalidSignature, "Invalid signature"}
	case errors.As(err, &declined):
		return gatewayAnswer{http.StatusOK, declined.Code, "Payment failed"}
	case errors.Is(err, service.ErrOrderAlreadyConfirmed):
		return gatewayAnswer{http.StatusOK, vnpay.CodeOrderConfirmed, "Order already confirmed"}
	case errors.Is(err, service.ErrInvalidAmount):
		return gatewayAnswer{http.StatusOK, vnpay.CodeInvalidAmount, "Invalid amount"}
	case errors.Is(err, service.ErrNotFound):
		return gatewayAnswer{http.StatusOK, vnpay.CodeOrderNotFound, "Order not found"}
	case errors.Is(err, service.ErrMalformedInput):
		return gatewayAnswer{http.StatusOK, vnpay.CodeUnknownError, "Invalid order info"}
	default:
		return gatewayAnswer{http.StatusInternalServerError, vnpay.CodeUnknownError, "Internal server error"}
	}
}

// CreatePayment godoc
// @Summary Create a premium payment and return the gateway URL
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreatePaymentRequest true "Months of premium"
// @Success 200 {object} service.PaymentLink
// @Failure 400 {object} gin.H "Invalid duration"
// @Failure 403 {object} gin.H "Trainers and admins cannot buy premium"
// @Router /payment/create-payment [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	link, err := h.premiumService.CreatePayment(c.Request.Context(), userID, req.DurationMonths, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// IPN is the server-to-server gateway callback. It always answers with a
// RspCode JSON body, even when the handler panics.
func (h *PaymentHandler) IPN(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("panic in payment IPN: %v", r)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"RspCode": vnpay.CodeUnknownError, "Message": "Internal server error"})
		}
	}()

	params := vnpay.ParamsFromQuery(c.Request.URL.Query())
	result, err := h.premiumService.HandlePaymentCallback(c.Request.Context(), params)
	answer := answerFor(err)
	entry := h.log.WithFields(map[string]interface{}{
		"txnRef":  params[vnpay.ParamTxnRef],
		"rspCode": answer.code,
	})
	switch {
	case err == nil:
		entry.With("userId", result.UserID.Hex()).Info("payment IPN applied")
	case answer.status >= http.StatusInternalServerError:
		_ = c.Error(err)
		entry.ErrorWithErr(err, "payment IPN failed")
	default:
		entry.WithError(err).Warnf("payment IPN rejected")
	}
	c.JSON(answer.status, gin.H{"RspCode": answer.code, "Message": answer.message})
}

// Return handles the browser redirect back from the gateway. It applies the
// same transition as the IPN, so whichever arrives first wins and the other
// sees an already confirmed order.
func (h *PaymentHandler) Return(c *gin.Context) {
	params := vnpay.ParamsFromQuery(c.Request.URL.Query())
	_, err := h.premiumService.HandlePaymentCallback(c.Request.Context(), params)
	if errors.Is(err, service.ErrOrderAlreadyConfirmed) {
		err = nil
	}
	answer := answerFor(err)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success", "code": params[vnpay.ParamResponseCode], "message": "Payment successful"})
	case answer.status >= http.StatusInternalServerError:
		_ = c.Error(err)
		c.JSON(answer.status, gin.H{"status": "error", "code": answer.code, "message": answer.message})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "error", "code": answer.code, "message": answer.message})
	}
}

func (h *PaymentHandler) PremiumStatus(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	status, err := h.premiumService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
