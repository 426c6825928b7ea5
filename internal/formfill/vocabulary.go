package formfill

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// CityStateZip is the address-field key that joins city, state and zip_code.
const CityStateZip = "city_state_zip"

type Binding struct {
	Label string `yaml:"label"`
	Key   string `yaml:"key"`
	Wrap  bool   `yaml:"wrap"`
}

type AddressScope struct {
	Label string `yaml:"label"`
	Key   string `yaml:"key"`
	// BlankWhenAbsent clears every field in the scope when the payload has no
	// usable address for it.
	BlankWhenAbsent bool `yaml:"blank_when_absent"`
}

type LineItems struct {
	Source  string    `yaml:"source"`
	Columns []Binding `yaml:"columns"`
}

// Vocabulary is the data-driven key set the prefill engine matches against.
type Vocabulary struct {
	WrapWidth     int            `yaml:"wrap_width"`
	RowPattern    string         `yaml:"row_pattern"`
	Header        []Binding      `yaml:"header"`
	OrderInfo     []Binding      `yaml:"order_info"`
	Addresses     []AddressScope `yaml:"addresses"`
	AddressFields []Binding      `yaml:"address_fields"`
	LineItems     LineItems      `yaml:"line_items"`

	rowRe *regexp.Regexp
}

// DefaultVocabulary returns the embedded Packing Slip vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file; an empty path yields the default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(b)
}

func ParseVocabulary(b []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := v.normalize(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) normalize() error {
	if v.WrapWidth <= 0 {
		v.WrapWidth = DefaultWrapWidth
	}
	if strings.TrimSpace(v.RowPattern) == "" {
		return fmt.Errorf("vocabulary: row_pattern is required")
	}
	re, err := regexp.Compile("(?i)" + v.RowPattern)
	if err != nil {
		return fmt.Errorf("vocabulary: compile row_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("vocabulary: row_pattern needs a capture group for the row number")
	}
	v.rowRe = re
	for _, list := range [][]Binding{v.Header, v.OrderInfo, v.AddressFields, v.LineItems.Columns} {
		for i := range list {
			list[i].Label = CanonicalKey(list[i].Label)
		}
	}
	for i := range v.Addresses {
		v.Addresses[i].Label = CanonicalKey(v.Addresses[i].Label)
	}
	if v.LineItems.Source == "" {
		v.LineItems.Source = "items"
	}
	return nil
}

// RowIndex extracts the zero-based row a line-item description refers to,
// e.g. "(3rd row shown)" is 2. The index may be negative for "0th".
func (v *Vocabulary) RowIndex(description string) (int, bool) {
	m := v.rowRe.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n - 1, true
}

func findBinding(list []Binding, key string) (Binding, bool) {
	for _, b := range list {
		if b.Label == key {
			return b, true
		}
	}
	return Binding{}, false
}
