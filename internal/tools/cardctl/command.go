package cardctl

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/whitecard/whitecard-backend/internal/di"
	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/service"
	"github.com/whitecard/whitecard-backend/internal/tools/common"
)

const toolName = "cardctl"

type cardAdmin interface {
	CreateCard(ctx context.Context, in service.CreateCardInput) (*service.IssuedCard, error)
	ActivateCard(ctx context.Context, cardNumber string) (*service.CardSummary, error)
	DeactivateCard(ctx context.Context, cardNumber string) (*service.CardSummary, error)
	RemoveCard(ctx context.Context, cardID string) error
	ListQRCodes(ctx context.Context, req repository.PageRequest) (*service.QRCodePage, error)
}

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

type issueOptions struct {
	name      string
	userType  string
	phone     string
	otpStatus string
	admin     bool
	verified  bool
	showQR    bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "cardctl",
		Short: "Issue and manage loyalty cards without the HTTP API",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newIssueCommand(opts),
		newStateCommand(opts, "activate", "Activate a card by card number", true),
		newStateCommand(opts, "deactivate", "Deactivate a card by card number", false),
		newRemoveCommand(opts),
		newListCommand(opts),
	)
	return cmd
}

func newIssueCommand(opts *options) *cobra.Command {
	in := &issueOptions{}
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new card and its QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scanURL string
			res := run(opts, "issue", func(ctx context.Context, admin cardAdmin) ([]string, error) {
				details, link, err := issueCard(ctx, admin, in)
				scanURL = link
				return details, err
			})
			if res.OK() && in.showQR && scanURL != "" {
				printQR(scanURL)
			}
			common.Finish(res, opts.ci, 5)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.name, "name", "", "card holder name")
	cmd.Flags().StringVar(&in.userType, "type", string(domain.CardCategoryA), "card category: A|B")
	cmd.Flags().StringVar(&in.phone, "phone", "", "holder phone number")
	cmd.Flags().StringVar(&in.otpStatus, "otp-status", string(domain.OTPStatusDisabled), "redemption OTP state: enabled|disabled")
	cmd.Flags().BoolVar(&in.admin, "admin", false, "grant admin rights")
	cmd.Flags().BoolVar(&in.verified, "verified", false, "issue the card already activated")
	cmd.Flags().BoolVar(&in.showQR, "show-qr", false, "print the QR code to the terminal")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStateCommand(opts *options, use, short string, verified bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <card-number>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, use, func(ctx context.Context, admin cardAdmin) ([]string, error) {
				return setCardState(ctx, admin, args[0], verified)
			})
		},
	}
}

func newRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <card-id>",
		Short: "Remove a card and its QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "remove", func(ctx context.Context, admin cardAdmin) ([]string, error) {
				if err := admin.RemoveCard(ctx, args[0]); err != nil {
					return nil, describe(err)
				}
				return []string{"removed card " + args[0]}, nil
			})
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issued QR codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "list", func(ctx context.Context, admin cardAdmin) ([]string, error) {
				return listQRCodes(ctx, admin, page, pageSize)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "page size")
	return cmd
}

func issueCard(ctx context.Context, admin cardAdmin, in *issueOptions) ([]string, string, error) {
	issued, err := admin.CreateCard(ctx, service.CreateCardInput{
		Name:        in.name,
		UserType:    domain.CardCategory(strings.ToUpper(strings.TrimSpace(in.userType))),
		PhoneNumber: strings.TrimSpace(in.phone),
		OTPStatus:   domain.OTPStatus(strings.ToLower(strings.TrimSpace(in.otpStatus))),
		IsAdmin:     in.admin,
		Verified:    in.verified,
	})
	if err != nil {
		return nil, "", describe(err)
	}
	details := []string{
		"id: " + issued.Card.ID,
		"card_number: " + issued.Card.CardNumber,
		"type: " + string(issued.Card.UserType),
		fmt.Sprintf("verified: %t", issued.Card.IsVerified),
		fmt.Sprintf("admin: %t", issued.Card.IsAdmin),
	}
	scanURL := ""
	if issued.QRCode != nil {
		scanURL = issued.QRCode.ScanURL
		details = append(details, "scan_url: "+scanURL)
		if issued.QRCode.ObjectKey != "" {
			details = append(details, "object_key: "+issued.QRCode.ObjectKey)
		}
	}
	return details, scanURL, nil
}

func setCardState(ctx context.Context, admin cardAdmin, cardNumber string, verified bool) ([]string, error) {
	var (
		card *service.CardSummary
		err  error
	)
	if verified {
		card, err = admin.ActivateCard(ctx, cardNumber)
	} else {
		card, err = admin.DeactivateCard(ctx, cardNumber)
	}
	if err != nil {
		return nil, describe(err)
	}
	return []string{
		"id: " + card.ID,
		"card_number: " + card.CardNumber,
		fmt.Sprintf("verified: %t", card.IsVerified),
	}, nil
}

func listQRCodes(ctx context.Context, admin cardAdmin, page, pageSize int) ([]string, error) {
	res, err := admin.ListQRCodes(ctx, repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, describe(err)
	}
	details := []string{fmt.Sprintf("page %d/%d, total %d", res.Page, res.TotalPages, res.Total)}
	for _, qr := range res.Items {
		details = append(details, fmt.Sprintf("%s  %s  %s", qr.CardNumber, qr.HolderName, qr.ScanURL))
	}
	return details, nil
}

// describe turns domain errors into their message id so CLI output stays
// readable without the HTTP catalog.
func describe(err error) error {
	if de, ok := service.AsDomainError(err); ok {
		return fmt.Errorf("%s (status %d)", de.MessageID, de.Status)
	}
	return err
}

func printQR(content string) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render qr: %v\n", err)
		return
	}
	fmt.Print(qr.ToSmallString(false))
}

func execute(opts *options, command string, fn func(context.Context, cardAdmin) ([]string, error)) error {
	common.Finish(run(opts, command, fn), opts.ci, 5)
	return nil
}

func run(opts *options, command string, fn func(context.Context, cardAdmin) ([]string, error)) common.CommandResult {
	return common.RunAction(toolName, command, opts.ci, opts.timeout, func(ctx context.Context) ([]string, error) {
		if err := common.LoadEnvFile(opts.envFile); err != nil {
			return nil, err
		}
		issuer, err := di.InitializeCardIssuer()
		if err != nil {
			return nil, err
		}
		defer issuer.Close()
		return fn(ctx, issuer.Admin)
	})
}
