package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shipdocs/internal/models"

	"github.com/stretchr/testify/require"
)

func TestBuiltinTemplates(t *testing.T) {
	var l Library
	bol, err := l.Template(models.DocumentTypeBOL)
	require.NoError(t, err)
	require.Contains(t, bol, `"bol_number"`)

	ps, err := l.Template(models.DocumentTypePackingSlip)
	require.NoError(t, err)
	require.Contains(t, ps, `"purchase_order_number"`)

	_, err = l.Template(models.DocumentTypePO)
	require.Error(t, err)
}

func TestTemplateOverrideFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "bol.txt"), []byte("custom bol"), 0o644))

	l := Library{Dir: dir}
	bol, err := l.Template(models.DocumentTypeBOL)
	require.NoError(t, err)
	require.Equal(t, "custom bol", bol)

	ps, err := l.Template(models.DocumentTypePackingSlip)
	require.NoError(t, err)
	require.Contains(t, ps, "PACKING SLIP")
}

func TestUserMessage(t *testing.T) {
	now := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	msg := User(models.DocumentTypePackingSlip, "PO #4500123\n\nQty 2", now)
	require.Contains(t, msg, "Today's Date: 2024-03-07")
	require.Contains(t, msg, "Example BOL Number for today: 2024030701")
	require.Contains(t, msg, "Here is the Purchase Order data to process:\n\nPO #4500123\n\nQty 2")
	require.True(t, strings.Contains(msg, "matching the Packing Slip structure"))
}

func TestCompanyContext(t *testing.T) {
	require.NotEmpty(t, CompanyContext(nil))

	seller := &models.SellerCompany{
		CompanyName:        "Hanson Chemicals",
		DefaultSalesperson: "Pat Lee",
		Addresses: []models.Address{
			{Name: "Hanson Chemicals", Address: "1 Dock St", City: "Houston", State: "TX", ZipCode: "77001", Country: "USA", IsDefault: true},
		},
	}
	ctx := CompanyContext(seller)
	require.Contains(t, ctx, "Hanson Chemicals")
	require.Contains(t, ctx, "1 Dock St, Houston, TX 77001, USA")
	require.Contains(t, ctx, "Default salesperson: Pat Lee.")
	require.Equal(t, ctx+"\n\ntemplate", System(ctx, "template"))
}
