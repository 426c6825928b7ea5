package formfill

import (
	"fmt"
	"strconv"
	"strings"

	"shipdocs/internal/canonical"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const leaveBlank = "Leave blank"

var rowLabels = []string{"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th", "9th", "10th", "11th", "12th"}

// RowLabel names a zero-based line-item row the way form templates do.
func RowLabel(i int) string {
	if i >= 0 && i < len(rowLabels) {
		return rowLabels[i]
	}
	return strconv.Itoa(i+1) + "th"
}

// Instructions renders payload as fill instructions, picking the Packing
// Slip, BOL or generic layout from the keys present.
func (e *Engine) Instructions(payload canonical.Payload) string {
	switch canonical.KindOf(payload) {
	case canonical.KindPackingSlip:
		return e.packingSlipInstructions(payload)
	case canonical.KindBOL:
		return e.bolInstructions(payload)
	default:
		return genericInstructions(payload)
	}
}

type lines []string

func (l *lines) add(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

func (l *lines) blank() {
	*l = append(*l, "")
}

func (e *Engine) packingSlipInstructions(p canonical.Payload) string {
	var out lines
	out.add("Fill this Packing Slip form with the following information:")
	out.blank()

	out.add("HEADER SECTION (top right corner):")
	headerFields := []struct{ key, label, hint string }{
		{"date", "DATE", "date format"},
		{"customer_id", "CUSTOMER ID", "text"},
		{"salesperson", "SALESPERSON", "text"},
	}
	for _, f := range headerFields {
		if v := p.String(f.key); v != "" {
			out.add("%s field (%s): %s", f.label, f.hint, v)
		} else {
			out.add("%s: %s", f.label, leaveBlank)
		}
	}
	out.blank()

	out.add("BILL TO SECTION:")
	if billTo, ok := p.Object("bill_to"); ok && billTo.AnyTruthy() {
		addressLines(&out, "BILL TO", billTo)
	} else {
		out.add("Leave all BILL TO fields blank")
	}
	out.blank()

	out.add("SHIP FROM SECTION:")
	shipFrom, _ := p.Object("ship_from")
	addressLines(&out, "SHIP FROM", shipFrom)
	out.blank()

	out.add("SHIP TO SECTION:")
	shipTo, _ := p.Object("ship_to")
	addressLines(&out, "SHIP TO", shipTo)
	out.blank()

	out.add("ORDER INFORMATION ROW (below SHIP TO section):")
	orderFields := []struct{ key, label string }{
		{"order_date", "ORDER DATE"},
		{"order_number", "ORDER #"},
		{"purchase_order_number", "PURCHASE ORDER #"},
		{"customer_contact", "CUSTOMER CONTACT"},
	}
	for _, f := range orderFields {
		if v := p.String(f.key); v != "" {
			out.add("Fill %s field with: %s", f.label, v)
		} else {
			out.add("%s: %s", f.label, leaveBlank)
		}
	}
	out.blank()

	out.add("LINE ITEMS TABLE (columns: ITEM #, DESCRIPTION, ORDER QTY, SHIP QTY):")
	for i, item := range p.Objects("items") {
		out.add("Line item (%s row):", RowLabel(i))
		columns := []struct{ key, label string }{
			{"item_number", "ITEM # (product code)"},
			{"description", "DESCRIPTION (product name)"},
			{"order_qty", "ORDER QTY (numeric quantity only)"},
			{"ship_qty", "SHIP QTY (numeric quantity only)"},
		}
		for _, c := range columns {
			v := item.String(c.key)
			if v == "" {
				v = leaveBlank
			} else if c.key == "description" {
				v = WrapText(v, e.vocab.WrapWidth)
			}
			out.add("  %s: %s", c.label, v)
		}
		out.blank()
	}

	if v := p.String("total"); v != "" {
		out.add("TOTAL: %s", v)
	} else {
		out.add("TOTAL: %s", leaveBlank)
	}
	return strings.Join(out, "\n")
}

func addressLines(out *lines, scope string, addr canonical.Payload) {
	parts := []struct{ label, value string }{
		{"Company Name", addr.String("name")},
		{"Street Address", addr.String("address")},
		{"City/State/Zip Code", JoinCityStateZip(addr)},
		{"Country", addr.String("country")},
	}
	for _, part := range parts {
		v := part.value
		if v == "" {
			v = leaveBlank
		}
		out.add("%s: %s: %s", scope, part.label, v)
	}
}

func (e *Engine) bolInstructions(p canonical.Payload) string {
	width := e.vocab.WrapWidth
	var out lines
	out.add("Fill this Bill of Lading with the following information:")
	out.blank()

	scalar := func(indent, label, value string) {
		if value == "" {
			value = leaveBlank
		}
		out.add("%s%s: %s", indent, label, value)
	}

	scalar("", "BOL NUMBER (digits only)", p.String("bol_number"))
	scalar("", "BOL DATE (YYYY-MM-DD)", p.String("bol_date"))
	scalar("", "CARRIER NAME", p.String("carrier_name"))

	for _, side := range []struct{ key, label string }{{"ship_from", "SHIP FROM"}, {"ship_to", "SHIP TO"}} {
		addr, _ := p.Object(side.key)
		out.blank()
		out.add("%s:", side.label)
		scalar("  ", "Company", addr.String("name"))
		scalar("  ", "Address", addr.String("address"))
		scalar("  ", "City/State/Zip", JoinCityStateZip(addr))
	}

	if products := p.Objects("products"); len(products) > 0 {
		out.blank()
		out.add("PRODUCTS (be strict about types: counts vs weights vs units):")
		for i, product := range products {
			out.add("  Product %d:", i+1)
			scalar("    ", "Name (text)", product.String("name"))
			scalar("    ", "Description (text)", WrapText(product.String("description"), width))
			scalar("    ", "Item Number (text/code)", product.String("item_number"))
			scalar("    ", "UN Code (text)", product.String("un_code"))
			handling, _ := product.Object("handling_unit")
			scalar("    ", "Handling Unit Quantity (integer count only)", handling.String("quantity"))
			scalar("    ", "Handling Unit Type (IBC/Drum/Pallet/Box text only)", handling.String("type"))
			pkg, _ := product.Object("package")
			scalar("    ", "Package/Weight Quantity (numeric only)", pkg.String("quantity"))
			scalar("    ", "Package/Weight Unit (kg/lb text only)", pkg.String("type"))
			scalar("    ", "Total Weight (numeric only)", product.String("weight"))
		}
	}

	if orders := p.Objects("orders"); len(orders) > 0 {
		out.blank()
		out.add("ORDERS (be strict: counts are integers; weights are numbers; units are separate):")
		for i, order := range orders {
			out.add("  Order %d:", i+1)
			scalar("    ", "Customer ID (text)", order.String("customer_id"))
			scalar("    ", "PO Number (text)", order.String("po_number"))
			scalar("    ", "Sales Order Number (digits/text)", order.String("sales_order_number"))
			scalar("    ", "Material Name (text)", order.String("material_name"))
			scalar("    ", "Number of Packages (integer count only)", order.String("num_packages"))
			scalar("    ", "Weight (numeric only)", order.String("weight"))
			scalar("    ", "Weight Unit (kg/lb text only)", order.String("weight_unit"))
			scalar("    ", "Country of Origin (text)", order.String("country_of_origin"))
			scalar("    ", "Customer PO (text)", order.String("customer_po"))
			scalar("    ", "Additional Shipper Info (text)", WrapText(order.String("additional_shipper_info"), width))
		}
	}

	if v := p.String("cod_amount"); v != "" {
		out.blank()
		out.add("COD AMOUNT: %s", v)
	}
	if v := p.String("special_instructions"); v != "" {
		out.blank()
		out.add("SPECIAL INSTRUCTIONS: %s", WrapText(v, width))
	}
	return strings.Join(out, "\n")
}

func genericInstructions(p canonical.Payload) string {
	var out lines
	out.add("Fill this form with the following information:")
	out.blank()
	// Casers keep state, so each call gets its own.
	walkGeneric(&out, cases.Title(language.English), p, "")
	return strings.Join(out, "\n")
}

func walkGeneric(out *lines, title cases.Caser, p canonical.Payload, prefix string) {
	for _, key := range p.Keys() {
		label := prefix + title.String(strings.ReplaceAll(key, "_", " "))
		switch v := p[key].(type) {
		case map[string]any:
			walkGeneric(out, title, canonical.Payload(v), label+" - ")
		case canonical.Payload:
			walkGeneric(out, title, v, label+" - ")
		case []any:
			if len(v) > 0 {
				if _, ok := v[0].(map[string]any); ok {
					for i, obj := range p.Objects(key) {
						walkGeneric(out, title, obj, fmt.Sprintf("%s %d - ", label, i+1))
					}
					continue
				}
			}
			parts := make([]string, 0, len(v))
			for _, x := range v {
				parts = append(parts, canonical.Stringify(x))
			}
			out.add("%s: %s", label, strings.Join(parts, ", "))
		case nil:
			out.add("%s: [Leave blank]", label)
		default:
			out.add("%s: %s", label, canonical.Stringify(v))
		}
	}
}
