package formfill

import (
	"strings"

	"shipdocs/internal/canonical"
	"shipdocs/internal/models"

	"go.uber.org/zap"
)

// Engine fills schema values deterministically from canonical data so the
// form-filling service never has to guess them.
type Engine struct {
	vocab *Vocabulary
	log   *zap.Logger
}

func NewEngine(vocab *Vocabulary, log *zap.Logger) *Engine {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{vocab: vocab, log: log}
}

func (e *Engine) Vocabulary() *Vocabulary {
	return e.vocab
}

// PrefillReport lists the order-info labels that were and were not found.
// Unmatched only names labels whose source value is non-empty.
type PrefillReport struct {
	Matched   []string `json:"matched"`
	Unmatched []string `json:"unmatched"`
}

// Prefill returns a copy of schema with values set from payload. Only Packing
// Slips are prefilled; other document types come back as an untouched copy.
func (e *Engine) Prefill(docType models.DocumentType, schema FormSchema, payload canonical.Payload) (FormSchema, PrefillReport) {
	if docType != models.DocumentTypePackingSlip {
		return schema.Clone(), PrefillReport{}
	}
	return e.PrefillPackingSlip(schema, payload)
}

func (e *Engine) PrefillPackingSlip(schema FormSchema, payload canonical.Payload) (FormSchema, PrefillReport) {
	out := schema.Clone()
	items := payload.Objects(e.vocab.LineItems.Source)
	matched := make(map[string]bool, len(e.vocab.OrderInfo))

	for i := range out {
		field := &out[i]
		desc := strings.TrimSpace(field.Description)
		if desc == "" {
			continue
		}
		key := CanonicalKey(desc)

		if b, ok := findBinding(e.vocab.Header, key); ok {
			field.SetValue(payload.String(b.Key))
			continue
		}
		if b, ok := findBinding(e.vocab.OrderInfo, key); ok {
			field.SetValue(payload.String(b.Key))
			matched[b.Label] = true
			continue
		}
		if scope, sub, ok := e.addressScope(key); ok {
			e.fillAddress(field, scope, sub, payload)
			continue
		}
		if col, ok := e.lineItemColumn(key); ok {
			idx, found := e.vocab.RowIndex(desc)
			if !found || idx < 0 || idx >= len(items) {
				field.SetValue("")
				continue
			}
			v := items[idx].String(col.Key)
			if col.Wrap {
				v = WrapText(v, e.vocab.WrapWidth)
			}
			field.SetValue(v)
		}
	}

	var report PrefillReport
	for _, b := range e.vocab.OrderInfo {
		switch {
		case matched[b.Label]:
			report.Matched = append(report.Matched, b.Label)
		case payload.String(b.Key) != "":
			report.Unmatched = append(report.Unmatched, b.Label)
		}
	}
	if len(report.Unmatched) > 0 {
		e.log.Warn("packing slip prefill could not match order-info fields",
			zap.Strings("fields", report.Unmatched),
			zap.Int("schema_fields", len(out)),
		)
	}
	return out, report
}

func (e *Engine) addressScope(key string) (AddressScope, string, bool) {
	for _, scope := range e.vocab.Addresses {
		if key == scope.Label {
			return scope, "", true
		}
		if strings.HasPrefix(key, scope.Label+":") {
			sub := strings.TrimSpace(strings.TrimPrefix(key, scope.Label+":"))
			return scope, strings.TrimSpace(strings.TrimSuffix(sub, ":")), true
		}
	}
	return AddressScope{}, "", false
}

func (e *Engine) fillAddress(field *FieldDescriptor, scope AddressScope, sub string, payload canonical.Payload) {
	addr, ok := payload.Object(scope.Key)
	if scope.BlankWhenAbsent && (!ok || !addr.AnyTruthy()) {
		field.SetValue("")
		return
	}
	b, found := findBinding(e.vocab.AddressFields, sub)
	if !found {
		return
	}
	if b.Key == CityStateZip {
		field.SetValue(JoinCityStateZip(addr))
		return
	}
	field.SetValue(addr.String(b.Key))
}

func (e *Engine) lineItemColumn(key string) (Binding, bool) {
	for _, col := range e.vocab.LineItems.Columns {
		if strings.HasPrefix(key, col.Label) {
			return col, true
		}
	}
	return Binding{}, false
}

// JoinCityStateZip renders "city state zip" with blank parts dropped.
func JoinCityStateZip(addr canonical.Payload) string {
	parts := make([]string, 0, 3)
	for _, k := range []string{"city", "state", "zip_code"} {
		if v := strings.TrimSpace(addr.String(k)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
