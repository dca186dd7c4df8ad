package scraper

import (
	"fmt"
	"strings"

	"bulletin-scraper/internal/document"
	"bulletin-scraper/internal/observability"
)

type Extractor struct {
	selectors Selectors
	logger    *observability.Logger
}

func NewExtractor(selectors Selectors, logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Extractor{
		selectors: selectors,
		logger:    logger,
	}
}

// Extract walks the article region of doc and returns one Section per table
// wrapper, in document order. Any shape violation aborts the whole
// extraction; no partial result is returned.
func (e *Extractor) Extract(doc document.Document) ([]Section, error) {
	article, err := doc.FindElementByClass(e.selectors.ArticleClass)
	if err != nil {
		return nil, structureErr("locate article region ."+e.selectors.ArticleClass, -1, -1, err)
	}

	bodies, err := e.tableBodies(article)
	if err != nil {
		return nil, err
	}

	headings, err := e.headingLabels(article)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Bulletin structure located",
		"url", doc.URL(),
		"tables", len(bodies),
		"headings", len(headings.labels),
	)

	sections := make([]Section, 0, len(bodies))
	for i, body := range bodies {
		label, ok := headings.next()
		if !ok {
			label = e.selectors.FallbackLabel
		}

		links, err := e.sectionLinks(i, body)
		if err != nil {
			return nil, err
		}

		sections = append(sections, Section{Label: label, Links: links})
	}

	if rest := headings.remaining(); rest > 0 {
		e.logger.Debug("Unpaired headings discarded", "count", rest)
	}

	return sections, nil
}

// tableBodies descends wrapper → table → body for every wrapper.
func (e *Extractor) tableBodies(article document.Element) ([]document.Element, error) {
	wrappers, err := article.FindElementsByClass(e.selectors.TableWrapperClass)
	if err != nil {
		return nil, structureErr("list table wrappers", -1, -1, err)
	}

	bodies := make([]document.Element, 0, len(wrappers))
	for i, wrapper := range wrappers {
		table, err := wrapper.FindElementByTag(e.selectors.TableTag)
		if err != nil {
			return nil, structureErr("locate "+e.selectors.TableTag+" in wrapper", i, -1, err)
		}
		body, err := table.FindElementByTag(e.selectors.BodyTag)
		if err != nil {
			return nil, structureErr("locate "+e.selectors.BodyTag+" in table", i, -1, err)
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// headingLabels reads the label attribute, not the rendered text, of every
// heading. A heading without the attribute contributes "".
func (e *Extractor) headingLabels(article document.Element) (*headingQueue, error) {
	elements, err := article.FindElementsByTag(e.selectors.HeadingTag)
	if err != nil {
		return nil, structureErr("list headings", -1, -1, err)
	}

	labels := make([]string, 0, len(elements))
	for _, el := range elements {
		label, _, err := el.Attribute(e.selectors.LabelAttribute)
		if err != nil {
			return nil, structureErr("read heading "+e.selectors.LabelAttribute, -1, -1, err)
		}
		labels = append(labels, label)
	}
	return &headingQueue{labels: labels}, nil
}

// sectionLinks collects the links of one table body. The first row is
// always dropped as a header, whatever the row count.
func (e *Extractor) sectionLinks(section int, body document.Element) ([]LinkEntry, error) {
	rows, err := body.FindElementsByTag(e.selectors.RowTag)
	if err != nil {
		return nil, structureErr("list rows", section, -1, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var links []LinkEntry
	for r, row := range rows[1:] {
		rowIdx := r + 1

		cells, err := row.FindElementsByTag(e.selectors.CellTag)
		if err != nil {
			return nil, structureErr("list cells", section, rowIdx, err)
		}
		if len(cells) <= e.selectors.LinkCell {
			return nil, structureErr("locate link cell", section, rowIdx,
				fmt.Errorf("want cell %d, row has %d cells", e.selectors.LinkCell, len(cells)))
		}

		anchors, err := cells[e.selectors.LinkCell].FindElementsByTag(e.selectors.AnchorTag)
		if err != nil {
			return nil, structureErr("list anchors", section, rowIdx, err)
		}

		for _, a := range anchors {
			link, ok, err := a.Attribute(e.selectors.LinkAttribute)
			if err != nil {
				return nil, structureErr("read anchor "+e.selectors.LinkAttribute, section, rowIdx, err)
			}
			if !ok {
				e.logger.Debug("Anchor without link target skipped", "table", section, "row", rowIdx)
				continue
			}
			if e.skip(link) {
				continue
			}
			links = append(links, LinkEntry(link))
		}
	}
	return links, nil
}

// skip drops footnote-marker self links.
func (e *Extractor) skip(link string) bool {
	return e.selectors.SkipSubstring != "" && strings.Contains(link, e.selectors.SkipSubstring)
}

// Summarize counts sections and links.
func Summarize(sections []Section, fallbackLabel string) Stats {
	stats := Stats{Sections: len(sections)}
	for _, s := range sections {
		stats.Links += len(s.Links)
		if len(s.Links) == 0 {
			stats.EmptySections++
		}
		if s.Label == fallbackLabel {
			stats.Untitled++
		}
	}
	return stats
}

// headingQueue hands out labels first-in first-out. Labels are never reused.
type headingQueue struct {
	labels []string
	cursor int
}

func (q *headingQueue) next() (string, bool) {
	if q.cursor >= len(q.labels) {
		return "", false
	}
	label := q.labels[q.cursor]
	q.cursor++
	return label, true
}

func (q *headingQueue) remaining() int {
	return len(q.labels) - q.cursor
}
