package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"drycleaning/backend/internal/domain"
	"drycleaning/backend/internal/pricing"
	"drycleaning/backend/internal/service"
	"drycleaning/backend/internal/store"
	"drycleaning/backend/internal/store/memory"
)

var (
	version = "dev"
	commit  = "none"
)

type globalOptions struct {
	catalog      string
	asOf         string
	enforceStart bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "pricectl",
		Short:         "Price dry-cleaning orders against a catalog",
		Long:          "pricectl quotes orders and checks promo codes against a YAML catalog or the built-in demo catalog, without a running server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "YAML catalog file (default: built-in demo catalog)")
	cmd.PersistentFlags().StringVar(&opts.asOf, "as-of", "", "Reference date YYYY-MM-DD (default: today, UTC)")
	cmd.PersistentFlags().BoolVar(&opts.enforceStart, "enforce-start-date", false, "Reject promo codes before their start date")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newQuoteCmd(opts))
	cmd.AddCommand(newCheckCodeCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show pricectl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pricectl %s (%s)\n", version, commit)
			return nil
		},
	}
}

func (o *globalOptions) service() (*service.Service, error) {
	var repo store.Repository
	if strings.TrimSpace(o.catalog) == "" {
		repo = memory.NewSeeded()
	} else {
		loaded, err := memory.LoadFixture(o.catalog)
		if err != nil {
			return nil, err
		}
		repo = loaded
	}
	engine := pricing.NewEngine(pricing.Policy{EnforcePromocodeStart: o.enforceStart}, nil)
	return service.New(repo, engine), nil
}

// parseLines turns "service-id[:qty]" arguments into order lines.
func parseLines(raw []string) ([]domain.LineInput, error) {
	lines := make([]domain.LineInput, 0, len(raw))
	for _, entry := range raw {
		id, qtyRaw, hasQty := strings.Cut(strings.TrimSpace(entry), ":")
		qty := 1
		if hasQty {
			parsed, err := strconv.Atoi(strings.TrimSpace(qtyRaw))
			if err != nil {
				return nil, fmt.Errorf("invalid quantity in --line %q", entry)
			}
			qty = parsed
		}
		lines = append(lines, domain.LineInput{ServiceID: strings.TrimSpace(id), Quantity: qty})
	}
	return lines, nil
}

func writeResult(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
