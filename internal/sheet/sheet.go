// Package sheet fills spreadsheet (.xlsx) templates locally.
//
// A template marks each fillable cell with a placeholder such as
// {{ORDER #}} or {{ITEM # (LINE ITEM) (2nd row shown)}}. The text between
// the braces becomes the field description, so the same vocabulary that
// drives PDF prefill drives workbook filling.
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"shipdocs/internal/formfill"

	"github.com/xuri/excelize/v2"
)

var placeholderRe = regexp.MustCompile(`^\s*\{\{\s*(.+?)\s*\}\}\s*$`)

type cellRef struct {
	Sheet string `json:"sheet"`
	Cell  string `json:"cell"`
}

// DetectSchema lists placeholder cells in sheet order, then row-major.
func DetectSchema(template []byte) (formfill.FormSchema, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	out := make(formfill.FormSchema, 0)
	for _, sh := range f.GetSheetList() {
		rows, err := f.GetRows(sh)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sh, err)
		}
		for r, row := range rows {
			for c, v := range row {
				m := placeholderRe.FindStringSubmatch(v)
				if m == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				fd := formfill.FieldDescriptor{Description: m[1]}
				if err := fd.SetAttr("sheet", sh); err != nil {
					return nil, err
				}
				if err := fd.SetAttr("cell", cell); err != nil {
					return nil, err
				}
				out = append(out, fd)
			}
		}
	}
	return out, nil
}

// Fill writes schema values into their cells and clears any placeholder
// that received no value. Fields without a cell attribute are ignored.
func Fill(template []byte, schema formfill.FormSchema) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	filled := make(map[cellRef]bool, len(schema))
	for _, fd := range schema {
		ref, ok := refOf(fd)
		if !ok {
			continue
		}
		if err := f.SetCellStr(ref.Sheet, ref.Cell, fd.Value); err != nil {
			return nil, fmt.Errorf("set %s!%s: %w", ref.Sheet, ref.Cell, err)
		}
		if strings.Contains(fd.Value, "\n") {
			if err := wrapCell(f, ref); err != nil {
				return nil, err
			}
		}
		filled[ref] = true
	}
	if err := clearPlaceholders(f, filled); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func refOf(fd formfill.FieldDescriptor) (cellRef, bool) {
	var ref cellRef
	rawSheet, ok := fd.Attr("sheet")
	if !ok {
		return ref, false
	}
	rawCell, ok := fd.Attr("cell")
	if !ok {
		return ref, false
	}
	if json.Unmarshal(rawSheet, &ref.Sheet) != nil || json.Unmarshal(rawCell, &ref.Cell) != nil {
		return ref, false
	}
	return ref, ref.Sheet != "" && ref.Cell != ""
}

func wrapCell(f *excelize.File, ref cellRef) error {
	style, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("new style: %w", err)
	}
	return f.SetCellStyle(ref.Sheet, ref.Cell, ref.Cell, style)
}

func clearPlaceholders(f *excelize.File, filled map[cellRef]bool) error {
	for _, sh := range f.GetSheetList() {
		rows, err := f.GetRows(sh)
		if err != nil {
			return fmt.Errorf("read sheet %s: %w", sh, err)
		}
		for r, row := range rows {
			for c, v := range row {
				if !placeholderRe.MatchString(v) {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if filled[cellRef{Sheet: sh, Cell: cell}] {
					continue
				}
				if err := f.SetCellStr(sh, cell, ""); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
