// Package search keeps a full-text index of the stored questions.
package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/edgard/slackqa/internal/qa"
)

// DefaultLimit caps a search when the caller passes no limit.
const DefaultLimit = 20

// Index wraps a Bleve index of records.
type Index struct {
	index bleve.Index
}

// document is what gets indexed for a record.
type document struct {
	Question    string
	Answer      string
	Keywords    string
	AuxKeywords string
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Open opens the index at path, creating it when missing. An empty path
// creates an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes every field with the English analyzer. Unfielded
// queries go through the default analyzer against _all, so it must stem the
// same way the fields do.
func buildIndexMapping() mapping.IndexMapping {
	englishText := bleve.NewTextFieldMapping()
	englishText.Analyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Question", englishText)
	docMapping.AddFieldMappingsAt("Answer", englishText)
	docMapping.AddFieldMappingsAt("Keywords", englishText)
	docMapping.AddFieldMappingsAt("AuxKeywords", englishText)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	return indexMapping
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// Index adds or replaces one record.
func (i *Index) Index(r qa.Record) error {
	if err := i.index.Index(r.ID, toDocument(r)); err != nil {
		return fmt.Errorf("index %s: %w", r.ID, err)
	}
	return nil
}

// Rebuild indexes every record in one batch.
func (i *Index) Rebuild(records []qa.Record) error {
	batch := i.index.NewBatch()
	for _, r := range records {
		if err := batch.Index(r.ID, toDocument(r)); err != nil {
			return fmt.Errorf("batch index %s: %w", r.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Search runs a query-string query and returns hits by descending score.
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(queryStr), limit, 0, false)

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed records.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func toDocument(r qa.Record) document {
	return document{
		Question:    r.Question,
		Answer:      r.Answer,
		Keywords:    strings.Join(r.Keywords, " "),
		AuxKeywords: strings.ReplaceAll(strings.Join(r.AuxKeywords, " "), "_", " "),
	}
}
