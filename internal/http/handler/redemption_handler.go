package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/service"
)

// RedemptionHandler serves the app-token protected redemption endpoints. The
// card is always the token subject, never a body field.
type RedemptionHandler struct {
	redemptions service.RedemptionServiceInterface
}

func NewRedemptionHandler(redemptions service.RedemptionServiceInterface) *RedemptionHandler {
	return &RedemptionHandler{redemptions: redemptions}
}

type redemptionOTPRequest struct {
	Brand string `json:"brand"`
}

type redemptionVerifyRequest struct {
	OTP string `json:"otp"`
}

func (h *RedemptionHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "redemption_otp_request", status, time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		status = "unauthorized"
		response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgUnauthorized), nil)
		return
	}
	var req redemptionOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	req.Brand = strings.TrimSpace(req.Brand)
	errs := fieldErrors{}
	errs.require("brand", req.Brand)
	if len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.redemptions.RequestRedemptionOTP(r.Context(), claims.Subject, req.Brand)
	if err != nil {
		status = writeServiceError(w, r, "redemption_otp_request", err)
		return
	}
	observability.Audit(r, "redemption.otp.issued", "card_id", claims.Subject, "brand", res.Brand)
	response.JSON(w, r, http.StatusCreated, response.Msg(res.MessageID), res)
}

func (h *RedemptionHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "redemption_otp_verify", status, time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		status = "unauthorized"
		response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgUnauthorized), nil)
		return
	}
	var req redemptionVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	errs := fieldErrors{}
	errs.match("otp", req.OTP, otpRe, "must be 4 digits")
	if len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.redemptions.VerifyRedemptionOTP(r.Context(), claims.Subject, req.OTP)
	if err != nil {
		status = writeServiceError(w, r, "redemption_otp_verify", err)
		return
	}
	observability.Audit(r, "redemption.otp.verified", "card_id", claims.Subject, "brand", res.Brand)
	response.JSON(w, r, http.StatusOK, response.Msg(res.MessageID), res)
}
