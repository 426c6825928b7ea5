// Package prompts builds the system and user messages that turn parsed
// purchase order text into BOL and Packing Slip JSON.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shipdocs/internal/models"
)

//go:embed templates/*.txt
var builtin embed.FS

// Library resolves document prompt templates. Files in Dir override the
// built-in copies, so operators can tune prompts without a rebuild.
type Library struct {
	Dir string
}

func templateFile(t models.DocumentType) (string, error) {
	switch t {
	case models.DocumentTypeBOL:
		return "bol.txt", nil
	case models.DocumentTypePackingSlip:
		return "packing_slip.txt", nil
	}
	return "", fmt.Errorf("no prompt template for document type %q", t)
}

func (l Library) Template(t models.DocumentType) (string, error) {
	name, err := templateFile(t)
	if err != nil {
		return "", err
	}
	if l.Dir != "" {
		b, err := os.ReadFile(filepath.Join(l.Dir, "prompts", name))
		if err == nil {
			return string(b), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	b, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("read builtin prompt %s: %w", name, err)
	}
	return string(b), nil
}

// CompanyContext describes the shipping company to the model.
func CompanyContext(seller *models.SellerCompany) string {
	if seller == nil {
		return "You work in the shipping department of a chemicals distributor."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You work in the shipping department of %s.\n", seller.CompanyName)
	if addr, ok := seller.DefaultAddress(); ok {
		fmt.Fprintf(&b, "Shipments leave from: %s, %s, %s, %s %s, %s.\n",
			addr.Name, addr.Address, addr.City, addr.State, addr.ZipCode, addr.Country)
	}
	if seller.DefaultSalesperson != "" {
		fmt.Fprintf(&b, "Default salesperson: %s.\n", seller.DefaultSalesperson)
	}
	if seller.Phone != "" {
		fmt.Fprintf(&b, "Shipping desk phone: %s.\n", seller.Phone)
	}
	if seller.Notes != "" {
		b.WriteString(seller.Notes)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func docLabel(t models.DocumentType) string {
	if t == models.DocumentTypePackingSlip {
		return "Packing Slip"
	}
	return string(t)
}

// System joins company context and the document template.
func System(companyContext, template string) string {
	return companyContext + "\n\n" + template
}

// User builds the per-request message: today's date for BOL numbering,
// then the purchase order text.
func User(t models.DocumentType, poText string, now time.Time) string {
	day := now.Format("20060102")
	return fmt.Sprintf(`
CURRENT DATE INFORMATION (use this for BOL number generation):
- Today's Date: %s
- BOL Number Format: %sXX (where XX is a 2-digit sequence starting from 01)
- Example BOL Number for today: %s01


Here is the Purchase Order data to process:

%s

Please extract the information and return ONLY a valid JSON object matching the %s structure specified in the template. Do not include any explanatory text, markdown formatting, or code blocks - just the raw JSON.`,
		now.Format("2006-01-02"), day, day, poText, docLabel(t))
}
