package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("gelato-backoffice/workflow")

type Options struct {
	StoreId string
	Scope   LedgerScope
	// CategoryWorkers bounds how many categories are applied concurrently.
	// Conference scope always runs with one.
	CategoryWorkers int
	Logger          *logrus.Logger
	Locker          RunLocker
	Publisher       ReportPublisher
}

// OptionsFromEnv builds the options of a deployed process: env feature flags,
// the shared logger, the redis run lock and both report publishers.
func OptionsFromEnv() Options {
	return Options{
		StoreId:         config.StoreId(),
		Scope:           ParseLedgerScope(config.ReconcileLedgerScope()),
		CategoryWorkers: config.ReconcileCategoryWorkers(),
		Logger:          config.GetLogger(),
		Locker:          NewRunLocker(),
		Publisher:       ReportPublishers{RedisReportCache{}, PubSubReportPublisher{}},
	}
}

// ReconciliationWorkflow turns verified receipts into catalog stock updates.
type ReconciliationWorkflow struct {
	store   models.Store
	opts    Options
	logger  *logrus.Logger
	applier *StockApplier
	ledger  *LedgerManager
	now     func() time.Time
}

func NewReconciliationWorkflow(store models.Store, opts Options) *ReconciliationWorkflow {
	if opts.StoreId == "" {
		opts.StoreId = "default"
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalRunLocker()
	}
	opts.Scope = ParseLedgerScope(string(opts.Scope))
	if opts.CategoryWorkers < 1 || opts.Scope == LedgerScopeConference {
		opts.CategoryWorkers = 1
	}
	applier := NewStockApplier()
	return &ReconciliationWorkflow{
		store:   store,
		opts:    opts,
		logger:  opts.Logger,
		applier: applier,
		ledger:  NewLedgerManager(opts.Scope, applier),
		now:     time.Now,
	}
}

type conferenceLines struct {
	conference *models.Conference
	lines      []models.LineItem
}

type lineTask struct {
	conferenceId int
	line         models.LineItem
	entry        *models.CatalogEntry
}

type categoryOutcome struct {
	deltas    []StockDelta
	failed    []FailedProduct
	cancelled bool
}

// Reconcile walks the conferences, resolves every line against the catalog
// and applies the stock deltas. With pendingOnly only lines that still have
// an open ledger row are visited. A failing line is reported and skipped;
// only an unreadable conference list or a held run lock fail the run.
// Cancelling ctx stops the run between lines and returns a partial report.
func (w *ReconciliationWorkflow) Reconcile(ctx context.Context, pendingOnly bool) (*Report, error) {
	runId := uuid.NewString()
	ctx = utils.SetRunIdInContext(ctx, runId)
	ctx = utils.SetStoreIdInContext(ctx, w.opts.StoreId)
	ctx, span := tracer.Start(ctx, "workflow.Reconcile", trace.WithAttributes(
		attribute.String("store_id", w.opts.StoreId),
		attribute.String("run_id", runId),
		attribute.Bool("pending_only", pendingOnly),
		attribute.String("ledger_scope", string(w.opts.Scope)),
	))
	defer span.End()

	logger := w.logger.WithFields(logrus.Fields{
		"field":        "Reconcile",
		"store_id":     w.opts.StoreId,
		"run_id":       runId,
		"pending_only": pendingOnly,
	})

	unlock, err := w.opts.Locker.Lock(ctx, w.opts.StoreId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	report := &Report{
		RunId:              runId,
		StoreId:            w.opts.StoreId,
		PendingOnly:        pendingOnly,
		LedgerScope:        w.opts.Scope,
		StartedAt:          w.now(),
		UpdatedProducts:    []string{},
		UnresolvedProducts: []UnresolvedProduct{},
		FailedProducts:     []FailedProduct{},
		SkippedConferences: []SkippedConference{},
		Deltas:             []StockDelta{},
	}

	work, err := w.collect(ctx, pendingOnly, report)
	if err != nil {
		config.LogError(w.logger, "reconciliationWorkflow.go", "Reconcile", "Loading conferences", runId, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resolver := NewCatalogResolver(w.store, NewMatchCache())
	tasks := map[models.Category][]lineTask{}
	unresolved := newUnresolvedSet()

resolveLoop:
	for _, cl := range work {
		for _, line := range cl.lines {
			if ctx.Err() != nil {
				report.Cancelled = true
				break resolveLoop
			}
			entry, found, err := w.resolveLine(ctx, resolver, cl.conference.ID, line.ProductName)
			if err != nil {
				report.FailedProducts = append(report.FailedProducts, FailedProduct{
					ConferenceId: cl.conference.ID,
					Name:         line.ProductName,
					Stage:        stageResolve,
					Error:        err.Error(),
				})
				logger.WithFields(logrus.Fields{
					"conference_id": cl.conference.ID,
					"product_name":  line.ProductName,
				}).Warn("resolve failed: " + err.Error())
				continue
			}
			if !found {
				unresolved.add(line.ProductName, cl.conference.ID, line.QuantityReceived)
				continue
			}
			tasks[entry.Category] = append(tasks[entry.Category], lineTask{
				conferenceId: cl.conference.ID,
				line:         line,
				entry:        entry,
			})
		}
	}

	outcomes := w.apply(ctx, tasks, logger)
	updated := map[string]bool{}
	for _, category := range models.Categories() {
		outcome, ok := outcomes[category]
		if !ok {
			continue
		}
		report.Cancelled = report.Cancelled || outcome.cancelled
		report.FailedProducts = append(report.FailedProducts, outcome.failed...)
		for _, d := range outcome.deltas {
			report.Deltas = append(report.Deltas, d)
			if d.Delta != 0 && !updated[d.ProductName] {
				updated[d.ProductName] = true
				report.UpdatedProducts = append(report.UpdatedProducts, d.ProductName)
			}
		}
	}

	suggester := NewSuggestionEngine(resolver, w.logger)
	for _, p := range unresolved.products() {
		p.Suggestions = suggester.Suggest(ctx, p.Name)
		if p.Suggestions == nil {
			p.Suggestions = []Suggestion{}
		}
		report.UnresolvedProducts = append(report.UnresolvedProducts, *p)
	}
	if ctx.Err() != nil {
		report.Cancelled = true
	}
	report.FinishedAt = w.now()

	span.SetAttributes(
		attribute.Int("updated_products", len(report.UpdatedProducts)),
		attribute.Int("unresolved_products", len(report.UnresolvedProducts)),
		attribute.Int("failed_products", len(report.FailedProducts)),
		attribute.Bool("cancelled", report.Cancelled),
	)
	logger.WithFields(logrus.Fields{
		"updated_products":    len(report.UpdatedProducts),
		"unresolved_products": len(report.UnresolvedProducts),
		"failed_products":     len(report.FailedProducts),
		"skipped_conferences": len(report.SkippedConferences),
		"cancelled":           report.Cancelled,
	}).Info("reconciliation finished")

	if w.opts.Publisher != nil {
		if err := w.opts.Publisher.Publish(context.WithoutCancel(ctx), report); err != nil {
			config.LogError(w.logger, "reconciliationWorkflow.go", "Reconcile", "Publishing report", runId, err)
		}
	}
	return report, nil
}

// collect loads the conferences of the run and their parsed lines. Conferences
// whose products cannot be parsed are recorded as skipped.
func (w *ReconciliationWorkflow) collect(ctx context.Context, pendingOnly bool, report *Report) ([]conferenceLines, error) {
	var (
		conferences  []*models.Conference
		pendingNames map[int]map[string]bool
		err          error
	)
	if pendingOnly {
		ledgers, err := w.store.ListLedgers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list ledgers: %w", err)
		}
		pendingNames = map[int]map[string]bool{}
		var ids []int
		for _, l := range ledgers {
			if l.Outstanding() <= 0 {
				continue
			}
			if pendingNames[l.ConferenceId] == nil {
				pendingNames[l.ConferenceId] = map[string]bool{}
				ids = append(ids, l.ConferenceId)
			}
			pendingNames[l.ConferenceId][l.ProductName] = true
		}
		if len(ids) == 0 {
			return nil, nil
		}
		conferences, err = w.store.GetConferences(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load pending conferences: %w", err)
		}
	} else {
		conferences, err = w.store.ListConferences(ctx)
		if err != nil {
			return nil, fmt.Errorf("list conferences: %w", err)
		}
	}

	work := make([]conferenceLines, 0, len(conferences))
	for _, conf := range conferences {
		lines, err := conf.LineItems()
		if err != nil {
			report.SkippedConferences = append(report.SkippedConferences, SkippedConference{
				ConferenceId: conf.ID,
				Reason:       err.Error(),
			})
			w.logger.WithFields(logrus.Fields{
				"field":         "collect",
				"conference_id": conf.ID,
			}).Warn("skipping conference: " + err.Error())
			continue
		}
		lines = mergeDuplicateLines(lines)
		if pendingOnly && w.ledger.Scope() == LedgerScopeProduct {
			names := pendingNames[conf.ID]
			kept := lines[:0]
			for _, line := range lines {
				if names[line.ProductName] {
					kept = append(kept, line)
				}
			}
			lines = kept
		}
		if len(lines) == 0 {
			continue
		}
		work = append(work, conferenceLines{conference: conf, lines: lines})
	}
	return work, nil
}

// apply runs each category on its own worker. Lines of a category stay in
// conference order, so deltas on a shared catalog entry never interleave.
func (w *ReconciliationWorkflow) apply(ctx context.Context, tasks map[models.Category][]lineTask, logger *logrus.Entry) map[models.Category]*categoryOutcome {
	outcomes := make(map[models.Category]*categoryOutcome, len(tasks))
	for category := range tasks {
		outcomes[category] = &categoryOutcome{}
	}

	var g errgroup.Group
	g.SetLimit(w.opts.CategoryWorkers)
	for _, category := range models.Categories() {
		categoryTasks, ok := tasks[category]
		if !ok {
			continue
		}
		outcome := outcomes[category]
		g.Go(func() error {
			for _, task := range categoryTasks {
				if ctx.Err() != nil {
					outcome.cancelled = true
					return nil
				}
				delta, err := w.applyLine(ctx, task)
				if err != nil {
					outcome.failed = append(outcome.failed, FailedProduct{
						ConferenceId: task.conferenceId,
						Name:         task.line.ProductName,
						Stage:        stageApply,
						Error:        err.Error(),
					})
					logger.WithFields(logrus.Fields{
						"conference_id": task.conferenceId,
						"product_name":  task.line.ProductName,
						"category":      category,
					}).Warn("apply failed: " + err.Error())
					continue
				}
				outcome.deltas = append(outcome.deltas, *delta)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (w *ReconciliationWorkflow) applyLine(ctx context.Context, task lineTask) (*StockDelta, error) {
	var result *StockDelta
	err := w.store.Transaction(ctx, func(tx models.Store) error {
		delta, err := w.ledger.ReconcileLine(ctx, tx, task.conferenceId, task.line, task.entry.Clone())
		if err != nil {
			return err
		}
		result = delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveLine keeps a line on the catalog entry its ledger row or closing
// already points at. Unbound lines try an operator link, then an exact match.
func (w *ReconciliationWorkflow) resolveLine(ctx context.Context, resolver *CatalogResolver, conferenceId int, name string) (*models.CatalogEntry, bool, error) {
	entry, found, err := w.boundEntry(ctx, conferenceId, name)
	if err != nil || found {
		return entry, found, err
	}
	entry, found, err = w.linkedEntry(ctx, name)
	if err != nil || found {
		return entry, found, err
	}
	return resolver.ResolveAny(ctx, name)
}

// boundEntry returns the entry a previous pass applied this line to.
func (w *ReconciliationWorkflow) boundEntry(ctx context.Context, conferenceId int, name string) (*models.CatalogEntry, bool, error) {
	var (
		category models.Category
		id       int
	)
	ledger, err := w.store.FindLedger(ctx, conferenceId, name)
	if err != nil {
		return nil, false, fmt.Errorf("read ledger of conference %d %q: %w", conferenceId, name, err)
	}
	if ledger != nil {
		category, id = ledger.Category, ledger.CatalogEntryId
	} else {
		closing, err := w.store.FindReconciledLine(ctx, conferenceId, name)
		if err != nil {
			return nil, false, fmt.Errorf("read closing of conference %d %q: %w", conferenceId, name, err)
		}
		if closing != nil {
			category, id = closing.Category, closing.CatalogEntryId
		}
	}
	if id == 0 || !category.IsValid() {
		return nil, false, nil
	}
	entry, err := w.store.GetCatalogEntry(ctx, category, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		w.logger.WithFields(logrus.Fields{
			"field":            "boundEntry",
			"conference_id":    conferenceId,
			"product_name":     name,
			"category":         category,
			"catalog_entry_id": id,
		}).Warn("ledger points to a missing entry; resolving again")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read bound entry %s #%d: %w", category, id, err)
	}
	entry.Category = category
	return entry, true, nil
}

func (w *ReconciliationWorkflow) linkedEntry(ctx context.Context, name string) (*models.CatalogEntry, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return nil, false, nil
	}
	link, err := w.store.FindCatalogLink(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read catalog link %q: %w", key, err)
	}
	if link == nil {
		return nil, false, nil
	}
	entry, err := w.store.GetCatalogEntry(ctx, link.Category, link.CatalogEntryId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		runId, _ := utils.GetRunIdFromContext(ctx)
		storeId, _ := utils.GetStoreIdFromContext(ctx)
		w.logger.WithFields(logrus.Fields{
			"field":            "linkedEntry",
			"run_id":           runId,
			"store_id":         storeId,
			"name_key":         key,
			"category":         link.Category,
			"catalog_entry_id": link.CatalogEntryId,
		}).Warn("catalog link points to a missing entry")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read linked entry %s #%d: %w", link.Category, link.CatalogEntryId, err)
	}
	entry.Category = link.Category
	return entry, true, nil
}

// mergeDuplicateLines folds repeated product names of one conference into a
// single line, since the ledger keeps one row per (conference, product).
func mergeDuplicateLines(lines []models.LineItem) []models.LineItem {
	merged := make([]models.LineItem, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductName]; ok {
			merged[i].QuantityOrdered += line.QuantityOrdered
			merged[i].QuantityReceived += line.QuantityReceived
			continue
		}
		index[line.ProductName] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// unresolvedSet groups unresolved lines by normalized name, keeping the first
// spelling seen.
type unresolvedSet struct {
	order  []string
	byName map[string]*UnresolvedProduct
}

func newUnresolvedSet() *unresolvedSet {
	return &unresolvedSet{byName: map[string]*UnresolvedProduct{}}
}

func (s *unresolvedSet) add(name string, conferenceId int, received int) {
	key := NormalizeName(name)
	p, ok := s.byName[key]
	if !ok {
		p = &UnresolvedProduct{Name: name}
		s.byName[key] = p
		s.order = append(s.order, key)
	}
	p.PendingQuantity += received
	p.ConferenceIds = append(p.ConferenceIds, conferenceId)
}

func (s *unresolvedSet) products() []*UnresolvedProduct {
	out := make([]*UnresolvedProduct, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byName[key])
	}
	return out
}
