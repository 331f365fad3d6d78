package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/notify"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var errNotWired = errors.New("fake database has no SQL backend")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- database ---

type fakeDB struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
	beginErr  error
}

func (d *fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNotWired
}

func (d *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNotWired
}

func (d *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	d.begins++
	return &fakeTx{db: d}, nil
}

func (d *fakeDB) counts() (commits, rollbacks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits, d.rollbacks
}

type errRow struct{}

func (errRow) Scan(...any) error { return errNotWired }

// fakeTx only tracks how the transaction ended; the fake repositories ignore it.
type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	done bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.rollbacks++
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

// --- in-memory store ---

type store struct {
	mu            sync.Mutex
	affiliates    map[uuid.UUID]domain.Affiliate
	conversions   map[uuid.UUID]*domain.Conversion
	batches       map[uuid.UUID]*domain.PayoutBatch
	payouts       map[uuid.UUID]*domain.Payout
	items         []domain.PayoutItem
	config        *domain.ProgramConfig
	configErr     error
	activity      []domain.ActivityEntry
	verifications []domain.Verification
	admins        map[string]*domain.AdminUser
	outbox        []domain.OutboxDraft

	// beforeClaim runs inside Claim before any row is taken.
	beforeClaim func()
	listErr     error
	historyHits int
}

func newStore() *store {
	cfg := domain.DefaultProgramConfig()
	return &store{
		affiliates:  make(map[uuid.UUID]domain.Affiliate),
		conversions: make(map[uuid.UUID]*domain.Conversion),
		batches:     make(map[uuid.UUID]*domain.PayoutBatch),
		payouts:     make(map[uuid.UUID]*domain.Payout),
		admins:      make(map[string]*domain.AdminUser),
		config:      &cfg,
	}
}

func (s *store) repos() repository.Repositories {
	return repository.Repositories{
		Affiliates:    &fakeAffiliates{s},
		Conversions:   &fakeConversions{s},
		Batches:       &fakeBatches{s},
		Payouts:       &fakePayouts{s},
		Items:         &fakeItems{s},
		ProgramConfig: &fakeConfig{s},
		Activity:      &fakeActivity{s},
		Verifications: &fakeVerifications{s},
		AdminUsers:    &fakeAdmins{s},
		Outbox:        &fakeOutbox{s},
	}
}

func (s *store) addAffiliate(a domain.Affiliate) domain.Affiliate {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = "active"
	}
	s.affiliates[a.ID] = a
	return a
}

func (s *store) addConversion(affiliateID uuid.UUID, amount string, created time.Time) *domain.Conversion {
	c := &domain.Conversion{
		ID:               uuid.New(),
		AffiliateID:      affiliateID,
		OrderID:          "ORD-" + uuid.NewString()[:8],
		CommissionAmount: dec(amount),
		Status:           domain.ConversionCleared,
		CreatedAt:        created,
	}
	s.conversions[c.ID] = c
	return c
}

func (s *store) addPayout(p domain.Payout) *domain.Payout {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.PayoutPending
	}
	if p.PayoutMethod == "" {
		p.PayoutMethod = domain.PayoutMethodGCash
	}
	p.CreatedAt = time.Now()
	s.payouts[p.ID] = &p
	return &p
}

func (s *store) payout(id uuid.UUID) domain.Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payouts[id]
}

func (s *store) batch(id uuid.UUID) domain.PayoutBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.batches[id]
}

func (s *store) outboxTypes() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.outbox))
	for i, d := range s.outbox {
		out[i] = d.EventType
	}
	return out
}

func (s *store) activityTypes() []domain.ActivityType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActivityType, len(s.activity))
	for i, e := range s.activity {
		out[i] = e.ActivityType
	}
	return out
}

type fakeAffiliates struct{ s *store }

func (f *fakeAffiliates) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Affiliate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.affiliates[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type fakeConversions struct{ s *store }

func (f *fakeConversions) ListCleared(_ context.Context, _ repository.DBTX, affiliateIDs []uuid.UUID) ([]domain.ClearedConversion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.listErr != nil {
		return nil, f.s.listErr
	}
	var out []domain.ClearedConversion
	for _, c := range f.s.conversions {
		if c.Status != domain.ConversionCleared {
			continue
		}
		if len(affiliateIDs) > 0 && !slices.Contains(affiliateIDs, c.AffiliateID) {
			continue
		}
		out = append(out, domain.ClearedConversion{Conversion: *c, Affiliate: f.s.affiliates[c.AffiliateID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeConversions) Claim(_ context.Context, _ repository.DBTX, payoutID uuid.UUID, ids []uuid.UUID) ([]domain.Conversion, error) {
	if f.s.beforeClaim != nil {
		f.s.beforeClaim()
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Conversion
	for _, id := range ids {
		c, ok := f.s.conversions[id]
		if !ok || c.Status != domain.ConversionCleared {
			continue
		}
		c.Status = domain.ConversionProcessing
		c.PayoutID = &payoutID
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeConversions) Release(_ context.Context, _ repository.DBTX, payoutIDs []uuid.UUID) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, c := range f.s.conversions {
		if c.PayoutID != nil && slices.Contains(payoutIDs, *c.PayoutID) && c.Status == domain.ConversionProcessing {
			c.Status = domain.ConversionCleared
			c.PayoutID = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeConversions) MarkPaid(_ context.Context, _ repository.DBTX, payoutID uuid.UUID, paidAt time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.conversions {
		if c.PayoutID != nil && *c.PayoutID == payoutID && c.Status == domain.ConversionProcessing {
			c.Status = domain.ConversionPaid
			at := paidAt
			c.PaidAt = &at
		}
	}
	return nil
}

func (f *fakeConversions) ListByPayout(_ context.Context, _ repository.DBTX, payoutID uuid.UUID) ([]domain.Conversion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Conversion
	for _, c := range f.s.conversions {
		if c.PayoutID != nil && *c.PayoutID == payoutID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeBatches struct{ s *store }

func (f *fakeBatches) Create(_ context.Context, _ repository.DBTX, b *domain.PayoutBatch) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.s.batches[b.ID] = &cp
	return nil
}

func (f *fakeBatches) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.PayoutBatch, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBatches) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutBatch, error) {
	return f.FindByID(ctx, tx, id)
}

func (f *fakeBatches) Transition(_ context.Context, _ repository.DBTX, id uuid.UUID, from []domain.BatchStatus, to domain.BatchStatus) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.batches[id]
	if !ok || !slices.Contains(from, b.Status) {
		return false, nil
	}
	now := time.Now()
	b.Status = to
	switch to {
	case domain.BatchVerified:
		if b.VerifiedAt == nil {
			b.VerifiedAt = &now
		}
	case domain.BatchProcessing:
		if b.ProcessedAt == nil {
			b.ProcessedAt = &now
		}
	case domain.BatchCompleted, domain.BatchFailed:
		b.CompletedAt = &now
	}
	return true, nil
}

func (f *fakeBatches) List(_ context.Context, _ repository.DBTX, status domain.BatchStatus, limit, offset int) ([]domain.PayoutBatch, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var all []domain.PayoutBatch
	for _, b := range f.s.batches {
		if status == "" || b.Status == status {
			all = append(all, *b)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (f *fakeBatches) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.batches, id)
	for pid, p := range f.s.payouts {
		if p.BatchID != nil && *p.BatchID == id {
			delete(f.s.payouts, pid)
		}
	}
	return nil
}

func (f *fakeBatches) StatusTotals(_ context.Context, _ repository.DBTX) (map[domain.BatchStatus]domain.StatusAggregate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make(map[domain.BatchStatus]domain.StatusAggregate)
	for _, b := range f.s.batches {
		agg := out[b.Status]
		agg.Count++
		agg.Amount = agg.Amount.Add(b.NetAmount)
		out[b.Status] = agg
	}
	return out, nil
}

type fakePayouts struct{ s *store }

func (f *fakePayouts) Create(_ context.Context, _ repository.DBTX, p *domain.Payout) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.s.payouts[p.ID] = &cp
	return nil
}

func (f *fakePayouts) find(match func(*domain.Payout) bool) *domain.Payout {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, p := range f.s.payouts {
		if match(p) {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (f *fakePayouts) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Payout, error) {
	return f.find(func(p *domain.Payout) bool { return p.ID == id }), nil
}

func (f *fakePayouts) FindByProviderID(_ context.Context, _ repository.DBTX, providerID string) (*domain.Payout, error) {
	return f.find(func(p *domain.Payout) bool {
		return p.ProviderDisbursementID != nil && *p.ProviderDisbursementID == providerID
	}), nil
}

func (f *fakePayouts) FindByReference(_ context.Context, _ repository.DBTX, reference string) (*domain.Payout, error) {
	return f.find(func(p *domain.Payout) bool { return p.Reference != nil && *p.Reference == reference }), nil
}

func (f *fakePayouts) ListWithAffiliate(_ context.Context, _ repository.DBTX, ids []uuid.UUID, status domain.PayoutStatus) ([]domain.PayoutWithAffiliate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.listErr != nil {
		return nil, f.s.listErr
	}
	var out []domain.PayoutWithAffiliate
	for _, id := range ids {
		p, ok := f.s.payouts[id]
		if !ok || p.Status != status {
			continue
		}
		out = append(out, domain.PayoutWithAffiliate{Payout: *p, Affiliate: f.s.affiliates[p.AffiliateID]})
	}
	return out, nil
}

func (f *fakePayouts) ListByBatch(_ context.Context, _ repository.DBTX, batchID uuid.UUID) ([]domain.Payout, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Payout
	for _, p := range f.s.payouts {
		if p.BatchID != nil && *p.BatchID == batchID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePayouts) ListForSync(_ context.Context, _ repository.DBTX, limit int) ([]domain.Payout, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Payout
	for _, p := range f.s.payouts {
		if p.Status == domain.PayoutProcessing && p.ProviderDisbursementID != nil {
			out = append(out, *p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePayouts) MarkDispatched(_ context.Context, _ repository.DBTX, id uuid.UUID, disbursementID, reference string, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.payouts[id]
	if !ok || p.Status != domain.PayoutPending {
		return false, nil
	}
	p.Status = domain.PayoutProcessing
	p.ProviderDisbursementID = &disbursementID
	p.Reference = &reference
	p.ProcessedAt = &at
	return true, nil
}

func (f *fakePayouts) SetReference(_ context.Context, _ repository.DBTX, id uuid.UUID, reference string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.payouts[id]; ok && p.Reference == nil {
		p.Reference = &reference
	}
	return nil
}

func (f *fakePayouts) Transition(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to domain.PayoutStatus, reason *string, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.payouts[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	switch to {
	case domain.PayoutCompleted:
		p.ProcessedAt = &at
	case domain.PayoutFailed:
		p.FailedAt = &at
		p.FailureReason = reason
	}
	return true, nil
}

func (f *fakePayouts) ResetFailed(_ context.Context, _ repository.DBTX, ids []uuid.UUID) ([]domain.Payout, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.Payout
	for _, id := range ids {
		p, ok := f.s.payouts[id]
		if !ok || p.Status != domain.PayoutFailed {
			continue
		}
		p.Status = domain.PayoutPending
		p.ProviderDisbursementID = nil
		p.FailedAt = nil
		p.FailureReason = nil
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePayouts) History(_ context.Context, _ repository.DBTX, filter domain.PayoutFilter) ([]domain.PayoutHistoryRow, int, decimal.Decimal, error) {
	filter.Normalize()
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.historyHits++
	var all []domain.PayoutHistoryRow
	total := decimal.Zero
	for _, p := range f.s.payouts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.BatchID != nil && (p.BatchID == nil || *p.BatchID != *filter.BatchID) {
			continue
		}
		a := f.s.affiliates[p.AffiliateID]
		all = append(all, domain.PayoutHistoryRow{Payout: *p, AffiliateName: a.DisplayName(), AffiliateEmail: a.Email})
		total = total.Add(p.Amount)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(all) {
		return nil, len(all), total, nil
	}
	end := min(start+filter.PageSize, len(all))
	return all[start:end], len(all), total, nil
}

func (f *fakePayouts) StatusTotals(_ context.Context, _ repository.DBTX) (map[domain.PayoutStatus]domain.StatusAggregate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make(map[domain.PayoutStatus]domain.StatusAggregate)
	for _, p := range f.s.payouts {
		agg := out[p.Status]
		agg.Count++
		agg.Amount = agg.Amount.Add(p.NetAmount)
		out[p.Status] = agg
	}
	return out, nil
}

type fakeItems struct{ s *store }

func (f *fakeItems) Insert(_ context.Context, _ repository.DBTX, items []domain.PayoutItem) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, it := range items {
		it.ID = uuid.New()
		f.s.items = append(f.s.items, it)
	}
	return nil
}

func (f *fakeItems) ListByPayout(_ context.Context, _ repository.DBTX, payoutID uuid.UUID) ([]domain.PayoutItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.PayoutItem
	for _, it := range f.s.items {
		if it.PayoutID == payoutID {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeConfig struct{ s *store }

func (f *fakeConfig) Get(context.Context, repository.DBTX) (*domain.ProgramConfig, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.configErr != nil {
		return nil, f.s.configErr
	}
	cfg := *f.s.config
	return &cfg, nil
}

type fakeActivity struct{ s *store }

func (f *fakeActivity) Insert(_ context.Context, _ repository.DBTX, e *domain.ActivityEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	f.s.activity = append(f.s.activity, *e)
	return nil
}

func (f *fakeActivity) ListByTarget(_ context.Context, _ repository.DBTX, targetID uuid.UUID, _ int) ([]domain.ActivityEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.ActivityEntry
	for _, e := range f.s.activity {
		if e.TargetEntityID != nil && *e.TargetEntityID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeVerifications struct{ s *store }

func (f *fakeVerifications) Insert(_ context.Context, _ repository.DBTX, v *domain.Verification) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v.ID = uuid.New()
	v.VerifiedAt = time.Now()
	f.s.verifications = append(f.s.verifications, *v)
	return nil
}

func (f *fakeVerifications) FindLatest(_ context.Context, _ repository.DBTX, entityType string, entityID uuid.UUID) (*domain.Verification, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i := len(f.s.verifications) - 1; i >= 0; i-- {
		v := f.s.verifications[i]
		if v.TargetEntityType == entityType && v.TargetEntityID == entityID {
			return &v, nil
		}
	}
	return nil, nil
}

type fakeAdmins struct{ s *store }

func (f *fakeAdmins) FindByEmail(_ context.Context, _ repository.DBTX, email string) (*domain.AdminUser, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.admins[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAdmins) Create(_ context.Context, _ repository.DBTX, u *domain.AdminUser) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	f.s.admins[u.Email] = &cp
	return nil
}

type fakeOutbox struct{ s *store }

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.outbox = append(f.s.outbox, d)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(context.Context, repository.DBTX, int) ([]repository.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(context.Context, repository.DBTX, []int64) error {
	return nil
}

func (f *fakeOutbox) Backlog(context.Context, repository.DBTX) (int, time.Time, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.s.outbox), time.Time{}, nil
}

// --- provider ---

type fakeProvider struct {
	mu       sync.Mutex
	token    string
	created  []provider.PayoutRequest
	failFor  map[string]error // keyed by account number
	statuses map[string]*provider.PayoutResponse
	getErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		token:    "cb-token",
		failFor:  make(map[string]error),
		statuses: make(map[string]*provider.PayoutResponse),
	}
}

func (p *fakeProvider) CreatePayout(_ context.Context, req provider.PayoutRequest) (*provider.PayoutResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, req)
	if err := p.failFor[req.AccountNumber]; err != nil {
		return nil, err
	}
	id := "disb_" + req.ReferenceID
	return &provider.PayoutResponse{ID: id, ReferenceID: req.ReferenceID, Status: "ACCEPTED", Amount: req.Amount}, nil
}

func (p *fakeProvider) GetPayout(_ context.Context, id string) (*provider.PayoutResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	resp, ok := p.statuses[id]
	if !ok {
		return &provider.PayoutResponse{ID: id, Status: "ACCEPTED"}, nil
	}
	return resp, nil
}

func (p *fakeProvider) VerifyCallbackToken(token string) bool {
	return token != "" && token == p.token
}

func (p *fakeProvider) requests() []provider.PayoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.PayoutRequest(nil), p.created...)
}

// --- notifier ---

type fakeNotifier struct {
	mu         sync.Mutex
	processing []uuid.UUID
	succeeded  []uuid.UUID
	failed     []uuid.UUID
	err        error
}

func (n *fakeNotifier) record(list *[]uuid.UUID, id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	*list = append(*list, id)
	return n.err
}

func (n *fakeNotifier) PayoutProcessing(_ context.Context, notice notify.PayoutNotice) error {
	return n.record(&n.processing, notice.PayoutID)
}

func (n *fakeNotifier) PayoutSucceeded(_ context.Context, notice notify.PayoutNotice) error {
	return n.record(&n.succeeded, notice.PayoutID)
}

func (n *fakeNotifier) PayoutFailed(_ context.Context, notice notify.PayoutNotice) error {
	return n.record(&n.failed, notice.PayoutID)
}

// --- fixtures ---

func gcashAffiliate(first, number string) domain.Affiliate {
	return domain.Affiliate{
		FirstName:    first,
		LastName:     "Santos",
		Email:        first + "@example.com",
		PayoutMethod: domain.PayoutMethodGCash,
		GCashNumber:  number,
		GCashName:    first + " Santos",
	}
}

func bankAffiliate(first, account string) domain.Affiliate {
	return domain.Affiliate{
		FirstName:           first,
		LastName:            "Reyes",
		Email:               first + "@example.com",
		PayoutMethod:        domain.PayoutMethodBankTransfer,
		BankCode:            "PH_BDO",
		BankName:            "BDO",
		BankAccountNumber:   account,
		BankAccountName:     first + " Reyes",
		BankAccountVerified: true,
	}
}
