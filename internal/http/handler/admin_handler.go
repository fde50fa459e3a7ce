package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/service"
)

type AdminHandler struct {
	admin service.CardAdminServiceInterface
}

func NewAdminHandler(admin service.CardAdminServiceInterface) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type createCardRequest struct {
	Name        string `json:"name"`
	UserType    string `json:"userType"`
	PhoneNumber string `json:"phoneNumber"`
	OTPStatus   string `json:"otpStatus"`
	IsAdmin     bool   `json:"isAdmin"`
}

type cardNumberRequest struct {
	CardNumber string `json:"cardNumber"`
}

func (h *AdminHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalid(w, r, nil)
		return
	}
	errs := fieldErrors{}
	errs.require("name", req.Name)
	if !domain.CardCategory(req.UserType).Valid() {
		errs["userType"] = "must be A or B"
	}
	if req.PhoneNumber != "" {
		errs.match("phoneNumber", req.PhoneNumber, phoneRe, "must be at most 15 digits")
	}
	if req.OTPStatus != "" && !domain.OTPStatus(req.OTPStatus).Valid() {
		errs["otpStatus"] = "must be enabled or disabled"
	}
	if len(errs) > 0 {
		writeInvalid(w, r, errs)
		return
	}

	issued, err := h.admin.CreateCard(r.Context(), service.CreateCardInput{
		Name:        strings.TrimSpace(req.Name),
		UserType:    domain.CardCategory(req.UserType),
		PhoneNumber: req.PhoneNumber,
		OTPStatus:   domain.OTPStatus(req.OTPStatus),
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		writeServiceError(w, r, "admin.create_card", err)
		return
	}
	observability.Audit(r, "admin.card.created", "actor_card_id", actorCardID(r), "card_id", issued.Card.ID, "is_admin", issued.Card.IsAdmin)
	response.JSON(w, r, http.StatusCreated, response.Msg(i18n.MsgCardCreated), issued)
}

func (h *AdminHandler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, true)
}

func (h *AdminHandler) DeactivateCard(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, false)
}

func (h *AdminHandler) setVerified(w http.ResponseWriter, r *http.Request, verified bool) {
	var req cardNumberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalid(w, r, nil)
		return
	}
	req.CardNumber = strings.TrimSpace(req.CardNumber)
	errs := fieldErrors{}
	errs.require("cardNumber", req.CardNumber)
	if len(errs) > 0 {
		writeInvalid(w, r, errs)
		return
	}

	var (
		card  *service.CardSummary
		err   error
		event = "admin.card.activated"
		msgID = i18n.MsgCardActivated
	)
	if verified {
		card, err = h.admin.ActivateCard(r.Context(), req.CardNumber)
	} else {
		event, msgID = "admin.card.deactivated", i18n.MsgCardDeactivated
		card, err = h.admin.DeactivateCard(r.Context(), req.CardNumber)
	}
	if err != nil {
		writeServiceError(w, r, event, err)
		return
	}
	observability.Audit(r, event, "actor_card_id", actorCardID(r), "card_id", card.ID)
	response.JSON(w, r, http.StatusOK, response.Msg(msgID), card)
}

func (h *AdminHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(cardID); err != nil {
		writeInvalid(w, r, fieldErrors{"id": "must be a card id"})
		return
	}
	if err := h.admin.RemoveCard(r.Context(), cardID); err != nil {
		writeServiceError(w, r, "admin.remove_card", err)
		return
	}
	observability.Audit(r, "admin.card.removed", "actor_card_id", actorCardID(r), "card_id", cardID)
	response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgCardRemoved), map[string]any{"id": cardID})
}

func (h *AdminHandler) ListQRCodes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAdminListRequestDuration(r.Context(), "qr_codes", status, time.Since(start))
	}()

	pageReq, err := parsePageRequest(r)
	if err != nil {
		status = "invalid"
		writeInvalid(w, r, err.Error())
		return
	}
	observability.RecordAdminListPageSize(r.Context(), "qr_codes", pageReq.PageSize)
	page, err := h.admin.ListQRCodes(r.Context(), pageReq)
	if err != nil {
		status = writeServiceError(w, r, "admin.list_qr_codes", err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgQRCodesListed), page)
}

func actorCardID(r *http.Request) string {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return claims.Subject
	}
	return ""
}
