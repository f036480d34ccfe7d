package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/embedding"
	"ai-support-router-be/pkg/index"
)

// ContentVector is one embedded text row. Every entry produces one row for
// title+body plus one per query string; EntryKey groups rows back to their
// owning entry within a partition build.
type ContentVector struct {
	ID           uint   `gorm:"primarykey"`
	IndexName    string `gorm:"index;not null"`
	EntryKey     int    `gorm:"not null"`
	Title        string
	Body         string
	SourceLink   string
	QueryStrings datatypes.JSON
	UserFields   datatypes.JSON
	Tags         datatypes.JSON
	Embedding    pgvector.Vector `gorm:"type:vector(768)"`
}

func (ContentVector) TableName() string {
	return "content_vectors"
}

// Store is the pgvector-backed Searcher. Ranking happens in Postgres with the
// L2 operator; threshold, user-field filtering and dedup reuse the same Go
// post-processing as the in-memory index so both backends agree.
type Store struct {
	db          *gorm.DB
	encoder     embedding.EmbeddingProvider
	maxDistance float64
	log         logger.ILogger
}

func NewStore(db *gorm.DB, encoder embedding.EmbeddingProvider, maxDistance float64, log logger.ILogger) *Store {
	if maxDistance <= 0 {
		maxDistance = 100
	}
	return &Store{db: db, encoder: encoder, maxDistance: maxDistance, log: log}
}

var _ index.Searcher = (*Store)(nil)

// Migrate creates the vector extension and the content_vectors table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&ContentVector{}); err != nil {
		return fmt.Errorf("migrate content_vectors: %w", err)
	}
	return nil
}

// Rebuild replaces one partition inside a transaction: readers either see the
// old rows or the new rows, never a mix. When no entry carries the index name
// the rebuild is a logged no-op and the previous rows stay in place.
func (s *Store) Rebuild(ctx context.Context, indexName string, entries []model.ContentEntry) error {
	rows, err := s.buildRows(indexName, entries)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.log.Warn("index", "no entries for index, skipping rebuild", map[string]interface{}{"index_name": indexName})
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("index_name = ?", indexName).Delete(&ContentVector{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("rebuild partition %q: %w", indexName, err)
	}

	s.log.Info("index", "partition rebuilt", map[string]interface{}{
		"index_name": indexName,
		"vectors":    len(rows),
	})
	return nil
}

func (s *Store) RebuildAll(ctx context.Context, entries []model.ContentEntry) error {
	names := make(map[string]bool)
	for _, e := range entries {
		if e.IndexName != "" {
			names[e.IndexName] = true
		}
	}

	for name := range names {
		if err := s.Rebuild(ctx, name, entries); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) buildRows(indexName string, entries []model.ContentEntry) ([]ContentVector, error) {
	var rows []ContentVector
	entryKey := 0
	for _, entry := range entries {
		if entry.IndexName != indexName {
			continue
		}

		queryStrings, _ := json.Marshal(entry.QueryStrings)
		userFields, _ := json.Marshal(entry.UserFieldsMapping)
		tags, _ := json.Marshal(entry.Tags)

		texts := append([]string{entry.MainText()}, entry.QueryStrings...)
		for _, text := range texts {
			resp, err := s.encoder.Generate(text, embedding.TaskRetrievalDocument)
			if err != nil {
				return nil, fmt.Errorf("embed entry %q: %w", entry.Title, err)
			}
			rows = append(rows, ContentVector{
				IndexName:    indexName,
				EntryKey:     entryKey,
				Title:        entry.Title,
				Body:         entry.Body,
				SourceLink:   entry.SourceLink,
				QueryStrings: queryStrings,
				UserFields:   userFields,
				Tags:         tags,
				Embedding:    pgvector.NewVector(resp.Embedding.Values),
			})
		}
		entryKey++
	}
	return rows, nil
}

func (s *Store) Search(ctx context.Context, indexName, query string, opts index.SearchOptions) ([]index.Match, error) {
	if opts.TopK <= 0 {
		return nil, nil
	}

	resp, err := s.encoder.Generate(query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVector := pgvector.NewVector(resp.Embedding.Values)

	pool := opts.TopK
	if len(opts.UserFields) > 0 {
		pool = opts.TopK * 3
	}

	type scoredRow struct {
		ContentVector
		Distance float64
	}
	var rows []scoredRow

	// <-> is the pgvector L2 distance operator.
	err = s.db.WithContext(ctx).
		Table("content_vectors").
		Select("content_vectors.*, embedding <-> ? AS distance", queryVector).
		Where("index_name = ?", indexName).
		Order("distance ASC").
		Limit(pool).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector search %q: %w", indexName, err)
	}
	if len(rows) == 0 {
		s.log.Warn("index", "search returned no rows", map[string]interface{}{"index_name": indexName})
		return nil, nil
	}

	seen := make(map[int]bool)
	var matches []index.Match
	for _, row := range rows {
		similarity := 1 - row.Distance/s.maxDistance
		if similarity < 0 {
			similarity = 0
		}
		if similarity < opts.SimilarityThreshold {
			continue
		}
		if seen[row.EntryKey] {
			continue
		}
		entry := rowToEntry(row.ContentVector)
		if !index.MatchesUserFields(entry, opts.UserFields) {
			continue
		}
		seen[row.EntryKey] = true
		matches = append(matches, index.Match{Entry: entry, Similarity: similarity})
		if len(matches) >= opts.TopK {
			break
		}
	}
	return matches, nil
}

func rowToEntry(row ContentVector) model.ContentEntry {
	entry := model.ContentEntry{
		Title:      row.Title,
		Body:       row.Body,
		IndexName:  row.IndexName,
		SourceLink: row.SourceLink,
	}
	_ = json.Unmarshal(row.QueryStrings, &entry.QueryStrings)
	_ = json.Unmarshal(row.UserFields, &entry.UserFieldsMapping)
	_ = json.Unmarshal(row.Tags, &entry.Tags)
	return entry
}
