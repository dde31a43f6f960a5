package parser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"tender-scraper/models"

	"github.com/PuerkitoBio/goquery"
)

// flatObjectPattern matches JSON objects that contain no nested objects.
var flatObjectPattern = regexp.MustCompile(`\{[^{}]*"[^"]*"[^{}]*\}`)

func (e *Extractor) containerRecords(c *Candidate, base *url.URL) []*models.Record {
	var records []*models.Record
	c.Elements.Each(func(i int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if len(text) <= e.cfg.MinContainerText || !containsAny(strings.ToLower(text), e.cfg.ContainerTextKeywords) {
			e.obs.RowDropped(c.Strategy, i)
			return
		}
		rec := elementRecord(s, text, base)
		rec.Set(models.FieldContainerIndex, i)
		records = append(records, rec)
	})
	return records
}

func (e *Extractor) looseTextRecords(c *Candidate, base *url.URL) []*models.Record {
	var records []*models.Record
	c.Elements.Each(func(i int, s *goquery.Selection) {
		rec := elementRecord(s, cleanText(s.Text()), base)
		rec.Set(models.FieldContentIndex, i)
		records = append(records, rec)
	})
	return records
}

// elementRecord builds the single-field record used by the non-tabular
// strategies: full text, links, tag name and class list.
func elementRecord(s *goquery.Selection, text string, base *url.URL) *models.Record {
	rec := models.NewRecord()
	rec.Set(models.FieldContent, text)
	if links := cellLinks(s, base); len(links) > 0 {
		rec.Set(models.FieldLinks, links)
	}
	rec.Set(models.FieldElementType, goquery.NodeName(s))
	rec.Set(models.FieldElementClass, strings.Fields(s.AttrOr("class", "")))
	return rec
}

func (e *Extractor) scriptRecords(c *Candidate) []*models.Record {
	var records []*models.Record
	index := 0
	for _, body := range c.Scripts {
		for _, match := range flatObjectPattern.FindAllString(body, -1) {
			var rec models.Record
			if err := json.Unmarshal([]byte(match), &rec); err != nil {
				continue
			}
			if !hasScriptKey(&rec, e.cfg.ScriptKeys) || !rec.HasText() {
				e.obs.RowDropped(c.Strategy, index)
				index++
				continue
			}
			rec.Set(models.FieldDataSource, "json_script")
			rec.Set(models.FieldContentIndex, index)
			records = append(records, &rec)
			index++
		}
	}
	return records
}

func hasScriptKey(rec *models.Record, keys []string) bool {
	for _, k := range rec.Keys() {
		if containsAny(strings.ToLower(k), keys) {
			return true
		}
	}
	return false
}
