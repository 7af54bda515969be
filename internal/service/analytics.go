package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/repository"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

type AnalyticsService struct {
	repository SecurityEventRepository
	now        func() time.Time
}

func NewAnalyticsService(repo SecurityEventRepository) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		now:        time.Now,
	}
}

// Holds security analytics for a time range
type SecuritySummary struct {
	From               time.Time               `json:"from"`
	To                 time.Time               `json:"to"`
	TotalEvents        int64                   `json:"total_events"`
	ByType             map[string]int64        `json:"by_type"`
	RateLimitedShare   float64                 `json:"rate_limited_percent"`
	MaliciousInputs    int64                   `json:"malicious_inputs"`
	TopIPs             []repository.GroupCount `json:"top_ips"`
	TopBlockedPolicies []repository.GroupCount `json:"top_blocked_policies"`
}

// Retrieves the security summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*SecuritySummary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", ErrInvalidTimeRange)
	}

	summary := &SecuritySummary{
		From:   from,
		To:     to,
		ByType: make(map[string]int64),
	}

	total, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalEvents = total

	if total == 0 {
		summary.TopIPs = []repository.GroupCount{}
		summary.TopBlockedPolicies = []repository.GroupCount{}
		return summary, nil
	}

	byType, err := s.repository.CountByType(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, c := range byType {
		summary.ByType[c.Key] = c.Count
	}

	summary.MaliciousInputs = summary.ByType[models.EventMaliciousInput]
	summary.RateLimitedShare = float64(summary.ByType[models.EventRateLimited]) / float64(total) * 100

	summary.TopIPs, err = s.repository.TopIPs(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}

	summary.TopBlockedPolicies, err = s.repository.TopPolicies(ctx, from, to, 5)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// Retrieves events with pagination and an optional type filter
func (s *AnalyticsService) GetEvents(ctx context.Context, from, to time.Time, eventType string, limit, offset int) ([]models.SecurityEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", ErrInvalidTimeRange)
	}
	return s.repository.FindByTimeRange(ctx, from, to, eventType, limit, offset)
}

// Deletes events older than the retention period
func (s *AnalyticsService) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %d days", retentionDays)
	}
	cutOff := s.now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOlderThan(ctx, cutOff)
}
