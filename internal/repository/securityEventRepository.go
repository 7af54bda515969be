package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/storage"
)

// Count of events grouped by one column
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type SecurityEventRepository struct {
	db *storage.Postgres
}

func NewSecurityEventRepository(db *storage.Postgres) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Inserts multiple events in one statement
func (r *SecurityEventRepository) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&events).Error
}

// Retrieves events in a time range, newest first. An empty eventType matches all types.
func (r *SecurityEventRepository) FindByTimeRange(ctx context.Context, from, to time.Time, eventType string, limit, offset int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent

	query := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to)
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}

	err := query.
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error

	return events, err
}

func (r *SecurityEventRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error

	return count, err
}

func (r *SecurityEventRepository) CountByType(ctx context.Context, from, to time.Time) ([]GroupCount, error) {
	return r.groupCount(ctx, "type", from, to, 0)
}

// Addresses producing the most events
func (r *SecurityEventRepository) TopIPs(ctx context.Context, from, to time.Time, limit int) ([]GroupCount, error) {
	return r.groupCount(ctx, "ip_address", from, to, limit)
}

func (r *SecurityEventRepository) TopPolicies(ctx context.Context, from, to time.Time, limit int) ([]GroupCount, error) {
	var results []GroupCount

	err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("policy AS key, COUNT(*) AS count").
		Where("type = ? AND timestamp BETWEEN ? AND ?", models.EventRateLimited, from, to).
		Group("policy").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

func (r *SecurityEventRepository) groupCount(ctx context.Context, column string, from, to time.Time, limit int) ([]GroupCount, error) {
	var results []GroupCount

	query := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select(column+" AS key, COUNT(*) AS count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group(column).
		Order("count DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Scan(&results).Error
	return results, err
}

// Deletes events older than the specified time
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.SecurityEvent{})

	return result.RowsAffected, result.Error
}
