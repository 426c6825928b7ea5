package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"shipdocs/internal/canonical"
	"shipdocs/internal/formfill"
	"shipdocs/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var prefillFlags struct {
	schemaPath   string
	dataPath     string
	docType      string
	instructions bool
}

// prefillCmd previews prefill output without touching any service
var prefillCmd = &cobra.Command{
	Use:   "prefill",
	Short: "Preview prefill and instructions offline from JSON files",
	Long: `Run the deterministic prefill engine on a stored form schema and a
canonical data file, and print the filled schema and the natural-language
instructions that would be sent with it.

The document type is detected from the data unless --type is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if prefillFlags.dataPath == "" {
			return fmt.Errorf("--data is required")
		}
		data, err := os.ReadFile(prefillFlags.dataPath)
		if err != nil {
			return fmt.Errorf("read data: %w", err)
		}
		var schema []byte
		if prefillFlags.schemaPath != "" {
			if schema, err = os.ReadFile(prefillFlags.schemaPath); err != nil {
				return fmt.Errorf("read schema: %w", err)
			}
		}
		vocab, err := formfill.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return err
		}
		engine := formfill.NewEngine(vocab, logger)
		return runPrefill(cmd.OutOrStdout(), engine, schema, data, prefillFlags.docType, prefillFlags.instructions)
	},
}

func init() {
	prefillCmd.Flags().StringVar(&prefillFlags.schemaPath, "schema", "", "form schema JSON file (array of fields)")
	prefillCmd.Flags().StringVar(&prefillFlags.dataPath, "data", "", "canonical BOL or packing slip JSON file")
	prefillCmd.Flags().StringVar(&prefillFlags.docType, "type", "", "document type: BOL or PACKING_SLIP (default: detect)")
	prefillCmd.Flags().BoolVar(&prefillFlags.instructions, "instructions-only", false, "print only the instructions")
}

func docTypeFor(flag string, payload canonical.Payload) (models.DocumentType, error) {
	if flag != "" {
		t := models.DocumentType(strings.ToUpper(flag))
		if t != models.DocumentTypeBOL && t != models.DocumentTypePackingSlip {
			return "", fmt.Errorf("invalid --type %q (want BOL or PACKING_SLIP)", flag)
		}
		return t, nil
	}
	switch canonical.KindOf(payload) {
	case canonical.KindBOL:
		return models.DocumentTypeBOL, nil
	case canonical.KindPackingSlip:
		return models.DocumentTypePackingSlip, nil
	}
	return "", nil
}

type prefillPreview struct {
	DocumentType models.DocumentType `json:"document_type,omitempty"`
	Schema       formfill.FormSchema `json:"schema,omitempty"`
	Matched      []string            `json:"matched,omitempty"`
	Unmatched    []string            `json:"unmatched,omitempty"`
	Instructions string              `json:"instructions"`
}

func runPrefill(w io.Writer, engine *formfill.Engine, schemaJSON, dataJSON []byte, typeFlag string, instructionsOnly bool) error {
	payload, err := canonical.Decode(dataJSON)
	if err != nil {
		return err
	}
	docType, err := docTypeFor(typeFlag, payload)
	if err != nil {
		return err
	}
	instructions := engine.Instructions(payload)
	if instructionsOnly {
		_, err := fmt.Fprintln(w, instructions)
		return err
	}
	out := prefillPreview{DocumentType: docType, Instructions: instructions}
	if len(schemaJSON) > 0 {
		schema, err := formfill.ParseSchema(schemaJSON)
		if err != nil {
			return err
		}
		filled, report := engine.Prefill(docType, schema, payload)
		out.Schema, out.Matched, out.Unmatched = filled, report.Matched, report.Unmatched
		logger.Debug("prefill preview", zap.Int("fields", len(filled)), zap.Strings("unmatched", report.Unmatched))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
