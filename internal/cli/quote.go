package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"drycleaning/backend/internal/domain"
)

// orderFile is the YAML form of an order accepted by --order.
type orderFile struct {
	Audience  string `yaml:"audience"`
	Promocode string `yaml:"promocode"`
	AsOf      string `yaml:"as_of"`
	Lines     []struct {
		LineID    string `yaml:"line_id"`
		ServiceID string `yaml:"service_id"`
		Quantity  int    `yaml:"quantity"`
	} `yaml:"lines"`
}

func loadOrderFile(path string) (domain.QuoteRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("read order file: %w", err)
	}
	var file orderFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("parse order file: %w", err)
	}

	req := domain.QuoteRequest{
		Audience: domain.Audience(strings.ToLower(strings.TrimSpace(file.Audience))),
		AsOf:     file.AsOf,
		Promo:    file.Promocode,
		Lines:    make([]domain.LineInput, 0, len(file.Lines)),
	}
	for _, line := range file.Lines {
		req.Lines = append(req.Lines, domain.LineInput{LineID: line.LineID, ServiceID: line.ServiceID, Quantity: line.Quantity})
	}
	return req, nil
}

func newQuoteCmd(opts *globalOptions) *cobra.Command {
	var (
		audience string
		code     string
		lines    []string
		order    string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an order and print the totals as JSON",
		Long:  "Price an order given by --line flags or an --order YAML file. Flags override values from the file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.QuoteRequest{Audience: domain.AudienceIndividual}
			if order != "" {
				loaded, err := loadOrderFile(order)
				if err != nil {
					return err
				}
				req = loaded
			}

			if cmd.Flags().Changed("audience") || req.Audience == "" {
				req.Audience = domain.Audience(strings.ToLower(audience))
			}
			if code != "" {
				req.Promo = code
			}
			if opts.asOf != "" {
				req.AsOf = opts.asOf
			}
			if len(lines) > 0 {
				parsed, err := parseLines(lines)
				if err != nil {
					return err
				}
				req.Lines = parsed
			}

			svc, err := opts.service()
			if err != nil {
				return err
			}
			resp, err := svc.Quote(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("quote failed: %w", err)
			}
			return writeResult(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&audience, "audience", string(domain.AudienceIndividual), "Client audience: individual or legal")
	cmd.Flags().StringVar(&code, "code", "", "Promo code to apply")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "Order line as service-id[:quantity], repeatable")
	cmd.Flags().StringVar(&order, "order", "", "YAML order file")

	return cmd
}

func newCheckCodeCmd(opts *globalOptions) *cobra.Command {
	var (
		audience string
		lines    []string
	)

	cmd := &cobra.Command{
		Use:   "check-code <code>",
		Short: "Report whether a promo code would apply to an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseLines(lines)
			if err != nil {
				return err
			}

			svc, err := opts.service()
			if err != nil {
				return err
			}
			resp, err := svc.CheckPromocode(cmd.Context(), domain.PromocodeCheckRequest{
				Code:     args[0],
				Audience: domain.Audience(strings.ToLower(audience)),
				AsOf:     opts.asOf,
				Lines:    parsed,
			})
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}
			return writeResult(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&audience, "audience", string(domain.AudienceIndividual), "Client audience: individual or legal")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "Order line as service-id[:quantity], repeatable")

	return cmd
}
