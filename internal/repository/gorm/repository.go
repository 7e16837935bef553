package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"eventbridge/internal/models"
	"eventbridge/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Exists(ctx context.Context, startsOn, title, sourceID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PublishedRecord{}).
		Where("starts_on = ?", startsOn).
		Where("title = ?", title).
		Where("source_id = ?", sourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) HasAnyForSource(ctx context.Context, sourceID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PublishedRecord{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) LatestStartForSource(ctx context.Context, sourceID string) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, repository.ErrNotFound
	}
	// StartsOn is canonical UTC RFC3339, so MAX over the string column is the
	// chronological maximum.
	var latest *string
	err := s.db.WithContext(ctx).
		Model(&models.PublishedRecord{}).
		Where("source_id = ?", sourceID).
		Select("MAX(starts_on)").
		Scan(&latest).Error
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil || strings.TrimSpace(*latest) == "" {
		return time.Time{}, repository.ErrNotFound
	}
	return time.Parse(time.RFC3339, *latest)
}

func (s *Store) InsertPublished(ctx context.Context, rec *models.PublishedRecord, prov *models.SourceProvenance) error {
	if s == nil || s.db == nil || rec == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if prov == nil {
			return nil
		}
		return tx.Create(prov).Error
	})
}

func (s *Store) ListPublished(ctx context.Context, params repository.ListPublishedParams) ([]models.PublishedRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPublishedFilters(s.db.WithContext(ctx).Model(&models.PublishedRecord{}), params)
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PublishedRecord
	if err := query.Order("starts_on desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPublished(ctx context.Context, params repository.ListPublishedParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyPublishedFilters(s.db.WithContext(ctx).Model(&models.PublishedRecord{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyPublishedFilters(query *gorm.DB, params repository.ListPublishedParams) *gorm.DB {
	if params.SourceID != nil && strings.TrimSpace(*params.SourceID) != "" {
		query = query.Where("source_id = ?", strings.TrimSpace(*params.SourceID))
	}
	if params.GroupingKey != nil && strings.TrimSpace(*params.GroupingKey) != "" {
		query = query.Where("grouping_key = ?", strings.TrimSpace(*params.GroupingKey))
	}
	return query
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
