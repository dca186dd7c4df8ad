package scraper

import (
	"fmt"
	"strings"
)

// LinkEntry is one link target, verbatim as the document reports it.
type LinkEntry string

// Section pairs a heading label with the links of one table. Label carries
// no trailing colon; the manifest adds it.
type Section struct {
	Label string
	Links []LinkEntry
}

// Selectors names the structural markers of a bulletin page.
type Selectors struct {
	ArticleClass      string `yaml:"article_class"`
	TableWrapperClass string `yaml:"table_wrapper_class"`
	TableTag          string `yaml:"table_tag"`
	BodyTag           string `yaml:"body_tag"`
	RowTag            string `yaml:"row_tag"`
	CellTag           string `yaml:"cell_tag"`
	AnchorTag         string `yaml:"anchor_tag"`
	HeadingTag        string `yaml:"heading_tag"`
	LabelAttribute    string `yaml:"label_attribute"`
	LinkAttribute     string `yaml:"link_attribute"`
	LinkCell          int    `yaml:"link_cell"`
	SkipSubstring     string `yaml:"skip_substring"`
	FallbackLabel     string `yaml:"fallback_label"`
}

// DefaultSelectors matches the devsite security bulletin layout.
func DefaultSelectors() Selectors {
	return Selectors{
		ArticleClass:      "devsite-article",
		TableWrapperClass: "devsite-table-wrapper",
		TableTag:          "table",
		BodyTag:           "tbody",
		RowTag:            "tr",
		CellTag:           "td",
		AnchorTag:         "a",
		HeadingTag:        "h3",
		LabelAttribute:    "data-text",
		LinkAttribute:     "href",
		LinkCell:          1,
		SkipSubstring:     "#asterisk",
		FallbackLabel:     "No title",
	}
}

// Validate checks that every marker is set. SkipSubstring may be empty,
// which disables filtering.
func (s Selectors) Validate() error {
	required := []struct {
		name, value string
	}{
		{"article_class", s.ArticleClass},
		{"table_wrapper_class", s.TableWrapperClass},
		{"table_tag", s.TableTag},
		{"body_tag", s.BodyTag},
		{"row_tag", s.RowTag},
		{"cell_tag", s.CellTag},
		{"anchor_tag", s.AnchorTag},
		{"heading_tag", s.HeadingTag},
		{"label_attribute", s.LabelAttribute},
		{"link_attribute", s.LinkAttribute},
		{"fallback_label", s.FallbackLabel},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if s.LinkCell < 0 {
		return fmt.Errorf("link_cell must be >= 0")
	}
	return nil
}

// Stats summarises an extraction for logging.
type Stats struct {
	Sections      int
	Links         int
	EmptySections int
	Untitled      int
}
