package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/utils"
)

const lastReportTTL = 7 * 24 * time.Hour

// ReportPublisher receives every finished report. Publishing is best effort;
// errors are logged by the workflow and never fail the run.
type ReportPublisher interface {
	Publish(ctx context.Context, report *Report) error
}

type ReportPublishers []ReportPublisher

func (ps ReportPublishers) Publish(ctx context.Context, report *Report) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func lastReportKey(storeId string) string {
	return fmt.Sprintf("reconcile:last:%s", storeId)
}

// RedisReportCache keeps the latest report of each store in redis.
type RedisReportCache struct{}

func (RedisReportCache) Publish(ctx context.Context, report *Report) error {
	return config.SetRedisObject(lastReportKey(report.StoreId), report, lastReportTTL)
}

// LastReport returns the cached report of the store, or nil when there is none.
func LastReport(storeId string) (*Report, error) {
	var report Report
	exists, err := config.GetRedisObject(lastReportKey(storeId), &report)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &report, nil
}

// PubSubReportPublisher emits a reconciliation.completed event when a topic is configured.
type PubSubReportPublisher struct{}

func (PubSubReportPublisher) Publish(ctx context.Context, report *Report) error {
	if config.ReconciliationTopic() == "" {
		return nil
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	_, err := config.PublishReconciliationEvent(ctx, config.ReconciliationEventMessage{
		StoreId:            report.StoreId,
		RunId:              report.RunId,
		PendingOnly:        report.PendingOnly,
		FinishedAt:         report.FinishedAt,
		UpdatedProducts:    report.UpdatedProducts,
		UnresolvedProducts: report.UnresolvedNames(),
		FailedCount:        len(report.FailedProducts),
		Cancelled:          report.Cancelled,
		CorrelationId:      correlationId,
	})
	return err
}
