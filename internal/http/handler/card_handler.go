package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/service"
)

type CardHandler struct {
	cards service.CardServiceInterface
}

func NewCardHandler(cards service.CardServiceInterface) *CardHandler {
	return &CardHandler{cards: cards}
}

type cardPINRequest struct {
	ID  string `json:"id"`
	PIN string `json:"pin"`
}

type cardIDRequest struct {
	ID string `json:"id"`
}

type cardOTPRequest struct {
	ID  string `json:"id"`
	OTP string `json:"otp"`
}

type resetPINRequest struct {
	ID         string `json:"id"`
	PIN        string `json:"pin"`
	ResetToken string `json:"resetToken"`
}

// Scan resolves a scanned QR code. The code carries either the raw card id
// (?card=) or a signed scan token (?credentials=).
func (h *CardHandler) Scan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "scan", status, time.Since(start))
	}()

	var (
		res *service.ScanResult
		err error
	)
	if credentials := strings.TrimSpace(r.URL.Query().Get("credentials")); credentials != "" {
		res, err = h.cards.ScanCardWithToken(r.Context(), credentials)
	} else {
		res, err = h.cards.ScanCard(r.Context(), strings.TrimSpace(r.URL.Query().Get("card")))
	}
	if err != nil {
		status = writeServiceError(w, r, "scan", err)
		return
	}
	setTokenHeader(w, res.Token)
	response.JSON(w, r, http.StatusOK, response.Message{ID: res.MessageID, Data: res.MessageData}, res)
}

func (h *CardHandler) FirstLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "first_login", status, time.Since(start))
	}()

	var req cardPINRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	if errs := validateCardPIN(req.ID, req.PIN); len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.cards.FirstLogin(r.Context(), req.ID, req.PIN)
	if err != nil {
		status = writeServiceError(w, r, "first_login", err)
		return
	}
	observability.Audit(r, "card.first_login.completed", "card_id", res.Card.ID, "token_issued", res.Token != "")
	setTokenHeader(w, res.Token)
	response.JSON(w, r, http.StatusOK, response.Msg(res.MessageID), res)
}

func (h *CardHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "verify_pin", status, time.Since(start))
	}()

	var req cardPINRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	if errs := validateCardPIN(req.ID, req.PIN); len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.cards.VerifyPIN(r.Context(), req.ID, req.PIN)
	if err != nil {
		status = writeServiceError(w, r, "verify_pin", err)
		return
	}
	observability.Audit(r, "card.pin.verified", "card_id", res.Card.ID)
	setTokenHeader(w, res.Token)
	response.JSON(w, r, http.StatusOK, response.Msg(res.MessageID), res)
}

func (h *CardHandler) RequestPINReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "pin_reset_request", status, time.Since(start))
	}()

	var req cardIDRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	errs := fieldErrors{}
	errs.require("id", req.ID)
	if len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.cards.RequestPINReset(r.Context(), req.ID)
	if err != nil {
		status = writeServiceError(w, r, "pin_reset_request", err)
		return
	}
	observability.Audit(r, "card.pin_reset.requested", "card_id", req.ID)
	response.JSON(w, r, http.StatusOK, response.Msg(res.MessageID), res)
}

func (h *CardHandler) VerifyPINReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "pin_reset_verify", status, time.Since(start))
	}()

	var req cardOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	errs := fieldErrors{}
	errs.require("id", req.ID)
	errs.match("otp", req.OTP, otpRe, "must be 4 digits")
	if len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	res, err := h.cards.VerifyPINReset(r.Context(), req.ID, req.OTP)
	if err != nil {
		status = writeServiceError(w, r, "pin_reset_verify", err)
		return
	}
	observability.Audit(r, "card.pin_reset.code_verified", "card_id", req.ID)
	setTokenHeader(w, res.ResetToken)
	response.JSON(w, r, http.StatusOK, response.Msg(res.MessageID), res)
}

// ResetPIN takes the reset token from the body or the auth-token header.
func (h *CardHandler) ResetPIN(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordCardRequestDuration(r.Context(), "pin_reset", status, time.Since(start))
	}()

	var req resetPINRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "invalid"
		writeInvalid(w, r, nil)
		return
	}
	if req.ResetToken == "" {
		req.ResetToken = strings.TrimSpace(r.Header.Get(response.TokenHeader))
	}
	if errs := validateCardPIN(req.ID, req.PIN); len(errs) > 0 {
		status = "invalid"
		writeInvalid(w, r, errs)
		return
	}
	if err := h.cards.ResetPIN(r.Context(), req.ID, req.PIN, req.ResetToken); err != nil {
		status = writeServiceError(w, r, "pin_reset", err)
		return
	}
	observability.Audit(r, "card.pin_reset.completed", "card_id", req.ID)
	response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgPINUpdated), map[string]any{"id": req.ID})
}

func validateCardPIN(id, pin string) fieldErrors {
	errs := fieldErrors{}
	errs.require("id", id)
	errs.match("pin", pin, pinRe, "must be 6 digits")
	return errs
}
