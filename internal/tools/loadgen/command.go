package loadgen

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/whitecard/whitecard-backend/internal/tools/common"
)

const exitLoadgenFailed = 4

type options struct {
	cfg Config
	ci  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "loadgen", Short: "Generate card scan traffic against a running API"}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	f.StringVar(&opts.cfg.Profile, "profile", "mixed", "traffic profile: "+strings.Join(Profiles, "|"))
	f.DurationVar(&opts.cfg.Duration, "duration", 15*time.Second, "traffic duration")
	f.IntVar(&opts.cfg.RPS, "rps", 20, "requests per second")
	f.IntVar(&opts.cfg.Concurrency, "concurrency", 6, "concurrent workers")
	f.Int64Var(&opts.cfg.Seed, "seed", 42, "random seed")
	f.StringVar(&opts.cfg.CardID, "card", "", "id of an issued card to scan")
	f.BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run load generation",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validate(opts.cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Allow in-flight requests to drain past the traffic window.
			budget := opts.cfg.Duration + 15*time.Second
			res := common.RunAction("loadgen", "run", opts.ci, budget, func(ctx context.Context) ([]string, error) {
				out, err := Run(ctx, opts.cfg)
				if err != nil {
					return nil, err
				}
				return summarize(out), nil
			})
			common.Finish(res, opts.ci, exitLoadgenFailed)
			return nil
		},
	}
}

func validate(cfg Config) error {
	if !slices.Contains(Profiles, strings.ToLower(cfg.Profile)) {
		return fmt.Errorf("unknown profile %q (want one of %s)", cfg.Profile, strings.Join(Profiles, ", "))
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid --base-url %q", cfg.BaseURL)
	}
	if cfg.RPS < 0 || cfg.Concurrency < 0 {
		return fmt.Errorf("--rps and --concurrency must not be negative")
	}
	return nil
}

func summarize(out Result) []string {
	return []string{
		fmt.Sprintf("total_requests=%d", out.TotalRequests),
		fmt.Sprintf("failures=%d", out.Failures),
		fmt.Sprintf("status_2xx=%d", out.Status2xx),
		fmt.Sprintf("status_4xx=%d", out.Status4xx),
		fmt.Sprintf("status_429=%d", out.Status429),
		fmt.Sprintf("status_5xx=%d", out.Status5xx),
	}
}
