package modelstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/utils"
)

var _ models.Store = (*MemoryStore)(nil)

// MemoryStore is an in-process models.Store for tests.
// Transactions are serialized and applied copy-on-commit.
type MemoryStore struct {
	mu       sync.Mutex
	txMu     *sync.Mutex
	data     *memoryData
	failures *memoryFailures
}

type memoryFailures struct {
	mu  sync.Mutex
	ops map[string]error
}

type memoryData struct {
	catalog     map[models.Category][]*models.CatalogEntry
	conferences []*models.Conference
	ledgers     []*models.StockLedger
	reconciled  []*models.ReconciledLine
	links       []*models.CatalogLink
	nextId      map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txMu: &sync.Mutex{},
		data: &memoryData{
			catalog: map[models.Category][]*models.CatalogEntry{},
			nextId:  map[string]int{},
		},
		failures: &memoryFailures{ops: map[string]error{}},
	}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		catalog: make(map[models.Category][]*models.CatalogEntry, len(d.catalog)),
		nextId:  make(map[string]int, len(d.nextId)),
	}
	for cat, entries := range d.catalog {
		for _, e := range entries {
			c.catalog[cat] = append(c.catalog[cat], e.Clone())
		}
	}
	for _, conf := range d.conferences {
		cc := *conf
		c.conferences = append(c.conferences, &cc)
	}
	for _, l := range d.ledgers {
		c.ledgers = append(c.ledgers, l.Clone())
	}
	for _, r := range d.reconciled {
		c.reconciled = append(c.reconciled, r.Clone())
	}
	for _, l := range d.links {
		c.links = append(c.links, l.Clone())
	}
	for k, v := range d.nextId {
		c.nextId[k] = v
	}
	return c
}

func (d *memoryData) id(table string) int {
	d.nextId[table]++
	return d.nextId[table]
}

// InjectFailure makes every call of op return err until cleared with a nil err.
// Catalog operations can be scoped to one category as "op:category", e.g. "ListCatalogEntries:acai".
func (s *MemoryStore) InjectFailure(op string, err error) {
	s.failures.mu.Lock()
	defer s.failures.mu.Unlock()
	if err == nil {
		delete(s.failures.ops, op)
		return
	}
	s.failures.ops[op] = err
}

func (s *MemoryStore) failure(ops ...string) error {
	s.failures.mu.Lock()
	defer s.failures.mu.Unlock()
	for _, op := range ops {
		if err, ok := s.failures.ops[op]; ok {
			return err
		}
	}
	return nil
}

// SeedCatalogEntry inserts a catalog row directly and returns a copy of it.
func (s *MemoryStore) SeedCatalogEntry(category models.Category, name string, stock int) *models.CatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.CatalogEntry{
		ID:                s.data.id(category.TableName()),
		Category:          category,
		Name:              name,
		Stock:             stock,
		AvailableForOrder: utils.NewTrue(),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	s.data.catalog[category] = append(s.data.catalog[category], e)
	return e.Clone()
}

// PutConference inserts or replaces a conference; ID 0 assigns a new id.
func (s *MemoryStore) PutConference(conf *models.Conference) *models.Conference {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conf
	c.UpdatedAt = time.Now()
	if c.ID == 0 {
		c.ID = s.data.id("verified_receipts")
		c.CreatedAt = c.UpdatedAt
		s.data.conferences = append(s.data.conferences, &c)
		out := c
		return &out
	}
	for i, existing := range s.data.conferences {
		if existing.ID == c.ID {
			s.data.conferences[i] = &c
			out := c
			return &out
		}
	}
	if c.ID > s.data.nextId["verified_receipts"] {
		s.data.nextId["verified_receipts"] = c.ID
	}
	s.data.conferences = append(s.data.conferences, &c)
	out := c
	return &out
}

func (s *MemoryStore) ListCatalogEntries(ctx context.Context, category models.Category) ([]*models.CatalogEntry, error) {
	if !category.IsValid() {
		return nil, models.ErrUnknownCategory
	}
	if err := s.failure("ListCatalogEntries", "ListCatalogEntries:"+category.String()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CatalogEntry, 0, len(s.data.catalog[category]))
	for _, e := range s.data.catalog[category] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetCatalogEntry(ctx context.Context, category models.Category, id int) (*models.CatalogEntry, error) {
	if !category.IsValid() {
		return nil, models.ErrUnknownCategory
	}
	if err := s.failure("GetCatalogEntry", "GetCatalogEntry:"+category.String()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.data.catalog[category] {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) CreateCatalogEntry(ctx context.Context, entry *models.CatalogEntry) error {
	if !entry.Category.IsValid() {
		return models.ErrUnknownCategory
	}
	if err := s.failure("CreateCatalogEntry", "CreateCatalogEntry:"+entry.Category.String()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.AvailableForOrder == nil {
		entry.AvailableForOrder = utils.NewTrue()
	}
	now := time.Now()
	entry.ID = s.data.id(entry.Category.TableName())
	entry.CreatedAt = now
	entry.UpdatedAt = now
	s.data.catalog[entry.Category] = append(s.data.catalog[entry.Category], entry.Clone())
	return nil
}

func (s *MemoryStore) AddStock(ctx context.Context, category models.Category, id int, delta int) (int, error) {
	if !category.IsValid() {
		return 0, models.ErrUnknownCategory
	}
	if err := s.failure("AddStock", "AddStock:"+category.String()); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.data.catalog[category] {
		if e.ID == id {
			e.Stock += delta
			e.UpdatedAt = time.Now()
			return e.Stock, nil
		}
	}
	return 0, utils.ErrorRecordNotFound
}

func (s *MemoryStore) ListConferences(ctx context.Context) ([]*models.Conference, error) {
	if err := s.failure("ListConferences"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Conference, 0, len(s.data.conferences))
	for _, c := range s.data.conferences {
		cc := *c
		out = append(out, &cc)
	}
	sortConferences(out)
	return out, nil
}

func (s *MemoryStore) GetConferences(ctx context.Context, ids []int) ([]*models.Conference, error) {
	if err := s.failure("GetConferences"); err != nil {
		return nil, err
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Conference
	for _, c := range s.data.conferences {
		if wanted[c.ID] {
			cc := *c
			out = append(out, &cc)
		}
	}
	sortConferences(out)
	return out, nil
}

func sortConferences(conferences []*models.Conference) {
	sort.SliceStable(conferences, func(i, j int) bool {
		if !conferences[i].Date.Equal(conferences[j].Date) {
			return conferences[i].Date.Before(conferences[j].Date)
		}
		return conferences[i].ID < conferences[j].ID
	})
}

func (s *MemoryStore) FindLedger(ctx context.Context, conferenceId int, productName string) (*models.StockLedger, error) {
	if err := s.failure("FindLedger"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.data.ledgers {
		if l.ConferenceId == conferenceId && l.ProductName == productName {
			return l.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindLedgerByConference(ctx context.Context, conferenceId int) (*models.StockLedger, error) {
	if err := s.failure("FindLedgerByConference"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.StockLedger
	for _, l := range s.data.ledgers {
		if l.ConferenceId != conferenceId {
			continue
		}
		if latest == nil || l.UpdatedAt.After(latest.UpdatedAt) ||
			(l.UpdatedAt.Equal(latest.UpdatedAt) && l.ID > latest.ID) {
			latest = l
		}
	}
	return latest.Clone(), nil
}

func (s *MemoryStore) ListLedgers(ctx context.Context) ([]*models.StockLedger, error) {
	if err := s.failure("ListLedgers"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.StockLedger, 0, len(s.data.ledgers))
	for _, l := range s.data.ledgers {
		out = append(out, l.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConferenceId != out[j].ConferenceId {
			return out[i].ConferenceId < out[j].ConferenceId
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveLedger(ctx context.Context, ledger *models.StockLedger) error {
	if err := s.failure("SaveLedger"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.data.ledgers {
		if l.ConferenceId == ledger.ConferenceId && l.ProductName == ledger.ProductName {
			ledger.ID = l.ID
			ledger.CreatedAt = l.CreatedAt
			s.data.ledgers[i] = ledger.Clone()
			return nil
		}
	}
	ledger.ID = s.data.id("stock_history")
	if ledger.CreatedAt.IsZero() {
		ledger.CreatedAt = time.Now()
	}
	s.data.ledgers = append(s.data.ledgers, ledger.Clone())
	return nil
}

func (s *MemoryStore) DeleteLedger(ctx context.Context, conferenceId int, productName string) error {
	if err := s.failure("DeleteLedger"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.data.ledgers[:0]
	for _, l := range s.data.ledgers {
		if l.ConferenceId == conferenceId && l.ProductName == productName {
			continue
		}
		kept = append(kept, l)
	}
	s.data.ledgers = kept
	return nil
}

func (s *MemoryStore) FindReconciledLine(ctx context.Context, conferenceId int, productName string) (*models.ReconciledLine, error) {
	if err := s.failure("FindReconciledLine"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.data.reconciled {
		if r.ConferenceId == conferenceId && r.ProductName == productName {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SaveReconciledLine(ctx context.Context, line *models.ReconciledLine) error {
	if err := s.failure("SaveReconciledLine"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.data.reconciled {
		if r.ConferenceId == line.ConferenceId && r.ProductName == line.ProductName {
			line.ID = r.ID
			s.data.reconciled[i] = line.Clone()
			return nil
		}
	}
	line.ID = s.data.id("reconciled_lines")
	s.data.reconciled = append(s.data.reconciled, line.Clone())
	return nil
}

func (s *MemoryStore) DeleteReconciledLine(ctx context.Context, conferenceId int, productName string) error {
	if err := s.failure("DeleteReconciledLine"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.data.reconciled[:0]
	for _, r := range s.data.reconciled {
		if r.ConferenceId == conferenceId && r.ProductName == productName {
			continue
		}
		kept = append(kept, r)
	}
	s.data.reconciled = kept
	return nil
}

func (s *MemoryStore) FindCatalogLink(ctx context.Context, nameKey string) (*models.CatalogLink, error) {
	if err := s.failure("FindCatalogLink"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.data.links {
		if l.NameKey == nameKey {
			return l.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SaveCatalogLink(ctx context.Context, link *models.CatalogLink) error {
	if err := s.failure("SaveCatalogLink"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	link.UpdatedAt = now
	for i, l := range s.data.links {
		if l.NameKey == link.NameKey {
			link.ID = l.ID
			link.CreatedAt = l.CreatedAt
			s.data.links[i] = link.Clone()
			return nil
		}
	}
	link.ID = s.data.id("catalog_links")
	link.CreatedAt = now
	s.data.links = append(s.data.links, link.Clone())
	return nil
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	tx := &MemoryStore{
		txMu:     &sync.Mutex{},
		data:     snapshot,
		failures: s.failures,
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}
