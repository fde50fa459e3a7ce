package cardctl

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/service"
)

type fakeAdmin struct {
	created  service.CreateCardInput
	verified map[string]bool
	removed  []string
}

func (f *fakeAdmin) CreateCard(_ context.Context, in service.CreateCardInput) (*service.IssuedCard, error) {
	f.created = in
	return &service.IssuedCard{
		Card: &service.CardSummary{ID: "card-1", CardNumber: "1234567890123456", UserType: in.UserType, IsVerified: in.Verified, IsAdmin: in.IsAdmin},
		QRCode: &domain.QRCode{
			CardID:  "card-1",
			ScanURL: "https://cards.example.com/api/v1/cards/scan?card=card-1",
		},
	}, nil
}

func (f *fakeAdmin) ActivateCard(_ context.Context, number string) (*service.CardSummary, error) {
	return f.setVerified(number, true)
}

func (f *fakeAdmin) DeactivateCard(_ context.Context, number string) (*service.CardSummary, error) {
	return f.setVerified(number, false)
}

func (f *fakeAdmin) setVerified(number string, verified bool) (*service.CardSummary, error) {
	if _, ok := f.verified[number]; !ok {
		return nil, &service.DomainError{Kind: service.KindNotFound, Status: http.StatusNotFound, MessageID: "card_not_found"}
	}
	f.verified[number] = verified
	return &service.CardSummary{ID: "id-" + number, CardNumber: number, IsVerified: verified}, nil
}

func (f *fakeAdmin) RemoveCard(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeAdmin) ListQRCodes(_ context.Context, req repository.PageRequest) (*service.QRCodePage, error) {
	return &service.QRCodePage{
		Items:      []domain.QRCode{{CardNumber: "1111222233334444", HolderName: "Ali", ScanURL: "https://x/scan?card=a"}},
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      1,
		TotalPages: 1,
	}, nil
}

func TestIssueCardNormalizesFlags(t *testing.T) {
	admin := &fakeAdmin{}
	details, scanURL, err := issueCard(context.Background(), admin, &issueOptions{
		name:      "Root",
		userType:  " a ",
		otpStatus: "ENABLED",
		admin:     true,
		verified:  true,
	})
	if err != nil {
		t.Fatalf("issueCard: %v", err)
	}
	if admin.created.UserType != domain.CardCategoryA || admin.created.OTPStatus != domain.OTPStatusEnabled {
		t.Fatalf("unexpected input: %+v", admin.created)
	}
	if !admin.created.IsAdmin || !admin.created.Verified {
		t.Fatalf("expected admin verified card, got %+v", admin.created)
	}
	if !strings.HasSuffix(scanURL, "card=card-1") {
		t.Fatalf("unexpected scan url %q", scanURL)
	}
	joined := strings.Join(details, "\n")
	if !strings.Contains(joined, "card_number: 1234567890123456") || !strings.Contains(joined, "scan_url: ") {
		t.Fatalf("missing details: %v", details)
	}
}

func TestSetCardStateReportsDomainErrors(t *testing.T) {
	admin := &fakeAdmin{verified: map[string]bool{"5555": false}}
	details, err := setCardState(context.Background(), admin, "5555", true)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !admin.verified["5555"] || details[2] != "verified: true" {
		t.Fatalf("expected activation, got %v", details)
	}

	_, err = setCardState(context.Background(), admin, "missing", false)
	if err == nil || err.Error() != "card_not_found (status 404)" {
		t.Fatalf("expected described not found error, got %v", err)
	}
}

func TestListQRCodesFormatsPage(t *testing.T) {
	details, err := listQRCodes(context.Background(), &fakeAdmin{}, 1, 20)
	if err != nil {
		t.Fatalf("listQRCodes: %v", err)
	}
	if len(details) != 2 || details[0] != "page 1/1, total 1" {
		t.Fatalf("unexpected details: %v", details)
	}
	if !strings.Contains(details[1], "1111222233334444") {
		t.Fatalf("expected card number in row: %q", details[1])
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"issue", "activate", "deactivate", "remove", "list"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v %v", name, cmd, err)
		}
	}
}
