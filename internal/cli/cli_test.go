package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drycleaning/backend/internal/cli"
	"drycleaning/backend/internal/domain"
)

const fixtureCatalog = "../../fixtures/catalog.yaml"

func run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestQuoteCommand_SeededCatalog(t *testing.T) {
	buf, err := run(t, "quote", "--as-of", "2025-06-15", "--line", "svc-coat:1", "--code", "corp500")
	require.NoError(t, err)

	var resp domain.QuoteResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), "output should be valid JSON")
	assert.Equal(t, "2025-06-15", resp.PricedAt)
	assert.True(t, decimal.NewFromInt(775).Equal(resp.Totals.FinalAmount), "final %s", resp.Totals.FinalAmount)
	require.NotNil(t, resp.Totals.AppliedPromocode)
	assert.Equal(t, "CORP500", resp.Totals.AppliedPromocode.Code)
}

func TestQuoteCommand_OrderFile(t *testing.T) {
	orderPath := filepath.Join(t.TempDir(), "order.yaml")
	require.NoError(t, os.WriteFile(orderPath, []byte(`
audience: legal
as_of: "2025-06-15"
lines:
  - service_id: svc-shirt
    quantity: 2
`), 0o600))

	buf, err := run(t, "quote", "--order", orderPath)
	require.NoError(t, err)

	var resp domain.QuoteResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, decimal.NewFromInt(560).Equal(resp.Totals.FinalAmount), "final %s", resp.Totals.FinalAmount)
	require.Len(t, resp.Totals.AppliedPromotions, 1)
	assert.Equal(t, "promo-legal-shirts", resp.Totals.AppliedPromotions[0].PromotionID)
}

func TestQuoteCommand_InactiveServiceFails(t *testing.T) {
	_, err := run(t, "quote", "--catalog", fixtureCatalog, "--as-of", "2025-06-15", "--line", "svc-curtain")
	assert.Error(t, err)
}

func TestQuoteCommand_BadLineFlag(t *testing.T) {
	_, err := run(t, "quote", "--line", "svc-coat:two")
	assert.Error(t, err)
}

func TestCheckCodeCommand_FixtureMinimumOrder(t *testing.T) {
	buf, err := run(t, "check-code", "BIGORDER", "--catalog", fixtureCatalog, "--as-of", "2025-06-15", "--line", "svc-coat:1")
	require.NoError(t, err)

	var resp domain.PromocodeCheckResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.False(t, resp.Applicable)
	assert.Equal(t, "below_min_order", resp.Reason)
}

func TestCheckCodeCommand_StartDatePolicy(t *testing.T) {
	args := []string{"check-code", "SUMMER2025", "--catalog", fixtureCatalog, "--as-of", "2025-05-20", "--line", "svc-suit:1"}

	buf, err := run(t, args...)
	require.NoError(t, err)
	var lenient domain.PromocodeCheckResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &lenient))
	assert.True(t, lenient.Applicable)

	buf, err = run(t, append(args, "--enforce-start-date")...)
	require.NoError(t, err)
	var strict domain.PromocodeCheckResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &strict))
	assert.False(t, strict.Applicable)
	assert.Equal(t, "not_started", strict.Reason)
}

func TestCheckCodeCommand_RequiresCode(t *testing.T) {
	_, err := run(t, "check-code")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	buf, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "pricectl")
}
