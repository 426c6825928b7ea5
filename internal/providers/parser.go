package providers

import "strings"

// ProviderRef is one entry of SHIPDOCS_LLM_PROVIDERS, e.g. "openai:ops".
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a provider list on "|" or ",". Names are
// lowercased and repeated entries are kept once, first position wins.
func ParseProviderList(raw string) []ProviderRef {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]ProviderRef, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		name, alias, _ := strings.Cut(f, ":")
		ref := ProviderRef{
			Raw:      f,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		key := ref.Name + ":" + ref.KeyAlias
		if ref.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}
