package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/service"
)

type stubAdminService struct {
	created     []service.CreateCardInput
	activated   []string
	deactivated []string
	removed     []string
	listReq     repository.PageRequest
	err         error
}

func (s *stubAdminService) CreateCard(_ context.Context, in service.CreateCardInput) (*service.IssuedCard, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &service.IssuedCard{
		Card:   &service.CardSummary{ID: testCardID, Name: in.Name, UserType: in.UserType, IsAdmin: in.IsAdmin},
		QRCode: &domain.QRCode{CardID: testCardID, ImagePNG: "iVBORw0KGgo="},
	}, nil
}

func (s *stubAdminService) ActivateCard(_ context.Context, cardNumber string) (*service.CardSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.activated = append(s.activated, cardNumber)
	return &service.CardSummary{ID: testCardID, CardNumber: cardNumber, IsVerified: true}, nil
}

func (s *stubAdminService) DeactivateCard(_ context.Context, cardNumber string) (*service.CardSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.deactivated = append(s.deactivated, cardNumber)
	return &service.CardSummary{ID: testCardID, CardNumber: cardNumber}, nil
}

func (s *stubAdminService) RemoveCard(_ context.Context, cardID string) error {
	if s.err != nil {
		return s.err
	}
	s.removed = append(s.removed, cardID)
	return nil
}

func (s *stubAdminService) ListQRCodes(_ context.Context, req repository.PageRequest) (*service.QRCodePage, error) {
	s.listReq = req
	return &service.QRCodePage{Items: []domain.QRCode{{CardID: testCardID}}, Page: req.Page, PageSize: req.PageSize, Total: 41, TotalPages: 3}, nil
}

func TestAdminHandlerCreateCardValidation(t *testing.T) {
	svc := &stubAdminService{}
	h := NewAdminHandler(svc)
	for _, body := range []string{
		`{"name":"","userType":"A"}`,
		`{"name":"Holder","userType":"C"}`,
		`{"name":"Holder","userType":"A","phoneNumber":"1234567890123456"}`,
		`{"name":"Holder","userType":"A","phoneNumber":"+96650"}`,
		`{"name":"Holder","userType":"B","otpStatus":"maybe"}`,
	} {
		rr := httptest.NewRecorder()
		h.CreateCard(rr, englishRequest(t, http.MethodPost, "/api/v1/admin/cards", body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
	if len(svc.created) != 0 {
		t.Fatalf("expected no cards created, got %d", len(svc.created))
	}
}

func TestAdminHandlerCreateCard(t *testing.T) {
	svc := &stubAdminService{}
	rr := httptest.NewRecorder()
	req := withCardClaims(englishRequest(t, http.MethodPost, "/api/v1/admin/cards", `{"name":" Holder ","userType":"B","phoneNumber":"966500000001","otpStatus":"enabled"}`), "admin-card", true)
	NewAdminHandler(svc).CreateCard(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(svc.created) != 1 || svc.created[0].Name != "Holder" || svc.created[0].OTPStatus != domain.OTPStatusEnabled {
		t.Fatalf("unexpected create input %+v", svc.created)
	}
	var issued service.IssuedCard
	env := decodeEnvelope(t, rr)
	decodeData(t, env, &issued)
	if issued.QRCode == nil || issued.QRCode.ImagePNG == "" || env.ResponseMessage != "Card created" {
		t.Fatalf("unexpected response %+v msg=%q", issued, env.ResponseMessage)
	}
}

func TestAdminHandlerActivateDeactivate(t *testing.T) {
	svc := &stubAdminService{}
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.ActivateCard(rr, englishRequest(t, http.MethodPost, "/api/v1/admin/cards/activate", `{"cardNumber":" 4000000000000001 "}`))
	if rr.Code != http.StatusOK || len(svc.activated) != 1 || svc.activated[0] != "4000000000000001" {
		t.Fatalf("expected activation, got %d %+v", rr.Code, svc.activated)
	}

	rr = httptest.NewRecorder()
	h.DeactivateCard(rr, englishRequest(t, http.MethodPatch, "/api/v1/admin/cards/deactivate", `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without card number, got %d", rr.Code)
	}

	svc.err = &service.DomainError{Kind: service.KindConflict, Status: http.StatusConflict, MessageID: i18n.MsgCardAlreadyInactive}
	rr = httptest.NewRecorder()
	h.DeactivateCard(rr, englishRequest(t, http.MethodPatch, "/api/v1/admin/cards/deactivate", `{"cardNumber":"4000000000000001"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestAdminHandlerRemoveCard(t *testing.T) {
	svc := &stubAdminService{}
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.RemoveCard(rr, withURLParam(englishRequest(t, http.MethodDelete, "/api/v1/admin/cards/nope", ""), "id", "nope"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.RemoveCard(rr, withURLParam(englishRequest(t, http.MethodDelete, "/api/v1/admin/cards/"+testCardID, ""), "id", testCardID))
	if rr.Code != http.StatusOK || len(svc.removed) != 1 {
		t.Fatalf("expected removal, got %d %+v", rr.Code, svc.removed)
	}
}

func TestAdminHandlerListQRCodesPaging(t *testing.T) {
	svc := &stubAdminService{}
	h := NewAdminHandler(svc)

	rr := httptest.NewRecorder()
	h.ListQRCodes(rr, englishRequest(t, http.MethodGet, "/api/v1/admin/qr-codes?page=2&page_size=20", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.listReq.Page != 2 || svc.listReq.PageSize != 20 {
		t.Fatalf("unexpected page request %+v", svc.listReq)
	}
	if rr.Header().Get("X-Total-Count") != "41" {
		t.Fatalf("expected total header, got %q", rr.Header().Get("X-Total-Count"))
	}
	var page service.QRCodePage
	decodeData(t, decodeEnvelope(t, rr), &page)
	if page.TotalPages != 3 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}

	for _, q := range []string{"page=0", "page_size=abc", "page_size=101"} {
		rr = httptest.NewRecorder()
		h.ListQRCodes(rr, englishRequest(t, http.MethodGet, "/api/v1/admin/qr-codes?"+q, ""))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}
