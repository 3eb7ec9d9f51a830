package curation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// RetentionResult counts rows removed by one cleanup run.
type RetentionResult struct {
	ExpiredRejected int `json:"expired_rejected"`
	PastCeiling     int `json:"past_ceiling"`
}

// Total returns the number of rows removed.
func (r RetentionResult) Total() int {
	return r.ExpiredRejected + r.PastCeiling
}

// RunRetentionCleanup removes rejected items past their expiry and any
// decided item older than DecisionRetentionCeiling. Pending items are kept
// regardless of age. Running it twice removes nothing the second time.
func (s *Store) RunRetentionCleanup(ctx context.Context) (*RetentionResult, error) {
	now := s.now()
	res := &RetentionResult{}

	n, err := s.items.DeleteExpiredRejected(ctx, now)
	if err != nil {
		return res, fmt.Errorf("failed to delete expired rejections: %w", err)
	}
	res.ExpiredRejected = n
	s.metrics.Retention("expired_rejected", n)

	n, err = s.items.DeleteDecidedBefore(ctx, now.Add(-types.DecisionRetentionCeiling))
	if err != nil {
		return res, fmt.Errorf("failed to delete items past retention ceiling: %w", err)
	}
	res.PastCeiling = n
	s.metrics.Retention("retention_ceiling", n)

	s.logger.WithFields(logrus.Fields{
		"operation":        "retention_cleanup",
		"expired_rejected": res.ExpiredRejected,
		"past_ceiling":     res.PastCeiling,
	}).Info("retention cleanup complete")
	return res, nil
}
