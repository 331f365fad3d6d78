package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/guard"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(st *store, prov *fakeProvider, notifier *fakeNotifier, concurrency int) (*Dispatcher, *fakeDB) {
	db := &fakeDB{}
	d := NewDispatcher(db, st.repos(), prov, notifier, guard.NewCircuitBreaker(5, time.Minute),
		guard.NewIdempotencyGuard(time.Minute), nil, nil, concurrency, testLogger())
	d.now = func() time.Time { return fixedNow }
	return d, db
}

type dispatchFixture struct {
	st      *store
	batch   *domain.PayoutBatch
	payouts []*domain.Payout
}

// newDispatchFixture seeds a verified batch with one pending payout per
// GCash number, created in order.
func newDispatchFixture(numbers ...string) *dispatchFixture {
	st := newStore()
	batch := &domain.PayoutBatch{
		ID:           uuid.New(),
		Name:         "Fixture batch",
		PayoutMethod: domain.PayoutMethodGCash,
		Status:       domain.BatchVerified,
	}
	st.batches[batch.ID] = batch

	f := &dispatchFixture{st: st, batch: batch}
	for i, n := range numbers {
		a := st.addAffiliate(gcashAffiliate("Aff"+string(rune('A'+i)), n))
		p := st.addPayout(domain.Payout{
			AffiliateID: a.ID,
			BatchID:     &batch.ID,
			Amount:      dec("2500"),
			FeeAmount:   dec("50"),
			NetAmount:   dec("2450"),
		})
		st.payouts[p.ID].CreatedAt = fixedNow.Add(time.Duration(i) * time.Second)
		f.payouts = append(f.payouts, p)
	}
	return f
}

func (f *dispatchFixture) ids() []uuid.UUID {
	ids := make([]uuid.UUID, len(f.payouts))
	for i, p := range f.payouts {
		ids[i] = p.ID
	}
	return ids
}

func TestDispatch_OneFailureDoesNotStopSiblings(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567", "09191234567")
	prov := newFakeProvider()
	prov.failFor["09181234567"] = &provider.ProviderError{StatusCode: 400, ErrorCode: "INVALID_DESTINATION", Message: "account not found"}
	notifier := &fakeNotifier{}
	d, _ := newTestDispatcher(f.st, prov, notifier, 1)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)

	require.Len(t, result.Successes, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, f.payouts[0].ID, result.Successes[0].PayoutID)
	assert.Equal(t, f.payouts[2].ID, result.Successes[1].PayoutID)
	assert.Equal(t, f.payouts[1].ID, result.Failures[0].PayoutID)
	assert.Contains(t, result.Failures[0].Reason, "account not found")
	assert.Equal(t, domain.ErrorTypeBankDetails, result.Failures[0].Type)
	assert.False(t, result.Failures[0].Retryable)
	assert.True(t, result.Failures[0].ManualIntervention)

	assert.Equal(t, domain.PayoutPending, f.st.payout(f.payouts[1].ID).Status)
	for _, i := range []int{0, 2} {
		p := f.st.payout(f.payouts[i].ID)
		assert.Equal(t, domain.PayoutProcessing, p.Status)
		require.NotNil(t, p.ProviderDisbursementID)
		require.NotNil(t, p.Reference)
		assert.Equal(t, "disb_"+*p.Reference, *p.ProviderDisbursementID)
		assert.Regexp(t, `^payout_\d+_[0-9a-f]{8}$`, *p.Reference)
	}

	reqs := prov.requests()
	require.Len(t, reqs, 3)
	assert.True(t, reqs[0].Amount.Equal(dec("2450")), "net amount is sent")
	assert.Equal(t, "PH_GCASH", reqs[0].ChannelCode)
	assert.Equal(t, "PHP", reqs[0].Currency)

	assert.Len(t, notifier.processing, 2)
	types := f.st.outboxTypes()
	assert.Equal(t, []domain.EventType{domain.EventPayoutDispatched, domain.EventPayoutDispatched}, types)

	var masked []string
	for _, e := range f.st.activity {
		if e.ActivityType == domain.ActivityPayoutSent {
			masked = append(masked, string(e.Details))
		}
	}
	require.Len(t, masked, 2)
	assert.Contains(t, masked[0], "09****4567")
	assert.NotContains(t, masked[0], "09171234567")
}

func TestDispatch_ConcurrentKeepsInputOrder(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567", "09191234567", "09201234567")
	prov := newFakeProvider()
	prov.failFor["09191234567"] = errors.New("connection reset by peer")
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 3)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Successes, 3)
	assert.Equal(t, f.payouts[0].ID, result.Successes[0].PayoutID)
	assert.Equal(t, f.payouts[1].ID, result.Successes[1].PayoutID)
	assert.Equal(t, f.payouts[3].ID, result.Successes[2].PayoutID)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, f.payouts[2].ID, result.Failures[0].PayoutID)
}

func TestDispatch_ReusesStoredReference(t *testing.T) {
	f := newDispatchFixture("09171234567")
	ref := "payout_1700000000000_deadbeef"
	f.st.payouts[f.payouts[0].ID].Reference = &ref
	prov := newFakeProvider()
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Successes, 1)
	assert.Equal(t, ref, result.Successes[0].Reference)
	assert.Equal(t, ref, prov.requests()[0].ReferenceID)
}

func TestDispatch_InvalidProfileSkipsProvider(t *testing.T) {
	f := newDispatchFixture("09171234567", "12345")
	prov := newFakeProvider()
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, result.Successes, 1)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "invalid mobile number format")
	assert.Len(t, prov.requests(), 1)
}

func TestDispatch_NotPendingReportedAsFailure(t *testing.T) {
	f := newDispatchFixture("09171234567")
	f.st.payouts[f.payouts[0].ID].Status = domain.PayoutCompleted
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	unknown := uuid.New()
	result, err := d.Dispatch(t.Context(), []uuid.UUID{f.payouts[0].ID, unknown}, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "payout not found or not pending", result.Failures[1].Reason)
}

func TestDispatch_NotificationFailureIsIgnored(t *testing.T) {
	f := newDispatchFixture("09171234567")
	notifier := &fakeNotifier{err: errors.New("sendgrid: 503")}
	d, _ := newTestDispatcher(f.st, newFakeProvider(), notifier, 1)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, result.Successes, 1)
	assert.Empty(t, result.Failures)
}

func TestDispatch_CircuitOpensAfterTransportErrors(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567", "09191234567")
	prov := newFakeProvider()
	for _, n := range []string{"09171234567", "09181234567", "09191234567"} {
		prov.failFor[n] = errors.New("dial tcp: i/o timeout")
	}
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)
	d.breaker = guard.NewCircuitBreaker(2, time.Minute)

	result, err := d.Dispatch(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Failures, 3)
	assert.Contains(t, result.Failures[2].Reason, "circuit open")
	assert.Equal(t, domain.ErrorTypeTimeout, result.Failures[0].Type)
	assert.Equal(t, domain.ErrorTypeNetwork, result.Failures[2].Type)
	assert.True(t, result.Failures[2].Retryable)
	assert.Len(t, prov.requests(), 2)
}

func TestDispatch_CancelledContext(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567")
	prov := newFakeProvider()
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	result, err := d.Dispatch(ctx, f.ids(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "dispatch cancelled", result.Failures[0].Reason)
	assert.Empty(t, prov.requests())
}

func TestDispatch_RequiresIDs(t *testing.T) {
	d, _ := newTestDispatcher(newStore(), newFakeProvider(), &fakeNotifier{}, 1)
	_, err := d.Dispatch(t.Context(), nil, uuid.New())
	requireAppError(t, err, "VALIDATION_ERROR")
}

func TestProcessBatch_Outcomes(t *testing.T) {
	providerErr := &provider.ProviderError{StatusCode: 400, Message: "rejected"}

	tests := []struct {
		name       string
		failing    []string
		wantStatus domain.BatchStatus
		finalized  bool
	}{
		{"all sent", nil, domain.BatchCompleted, true},
		{"partial failure", []string{"09181234567"}, domain.BatchProcessing, false},
		{"all failed", []string{"09171234567", "09181234567"}, domain.BatchFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture("09171234567", "09181234567")
			prov := newFakeProvider()
			for _, n := range tt.failing {
				prov.failFor[n] = providerErr
			}
			d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

			res, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantStatus, f.st.batch(f.batch.ID).Status)
			assert.NotNil(t, f.st.batch(f.batch.ID).ProcessedAt)
			assert.Equal(t, tt.finalized, containsEvent(f.st.outboxTypes(), domain.EventBatchFinalized))
			assert.Contains(t, f.st.activityTypes(), domain.ActivityBatchProcessed)
		})
	}
}

func containsEvent(types []domain.EventType, want domain.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestProcessBatch_RequiresVerified(t *testing.T) {
	f := newDispatchFixture("09171234567")
	f.batch.Status = domain.BatchPending
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	_, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
	requireAppError(t, err, "INVALID_STATE")
}

func TestProcessBatch_NoPendingPayoutsReverts(t *testing.T) {
	f := newDispatchFixture("09171234567")
	signedOff := fixedNow.Add(-2 * time.Hour)
	f.batch.VerifiedAt = &signedOff
	f.st.payouts[f.payouts[0].ID].Status = domain.PayoutProcessing
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	_, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
	requireAppError(t, err, "VALIDATION_ERROR")
	b := f.st.batch(f.batch.ID)
	assert.Equal(t, domain.BatchVerified, b.Status)
	require.NotNil(t, b.VerifiedAt)
	assert.True(t, signedOff.Equal(*b.VerifiedAt), "revert keeps the original sign-off time")
}

func TestProcessBatch_LoadFailureReverts(t *testing.T) {
	f := newDispatchFixture("09171234567")
	f.st.listErr = errors.New("connection refused")
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	_, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
	requireAppError(t, err, "INTERNAL_ERROR")
	assert.Equal(t, domain.BatchVerified, f.st.batch(f.batch.ID).Status)
}

func TestProcessBatch_RejectsConcurrentRun(t *testing.T) {
	f := newDispatchFixture("09171234567")
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)
	key := "batch:" + f.batch.ID.String()
	require.True(t, d.inflight.Acquire(t.Context(), key).Allowed)

	_, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
	requireAppError(t, err, "CONFLICT")
	assert.Equal(t, domain.BatchVerified, f.st.batch(f.batch.ID).Status)
}

func TestRetryFailed(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567")
	f.batch.Status = domain.BatchFailed
	reason := "INSUFFICIENT_BALANCE"
	disb := "disb_old"
	for _, p := range f.payouts {
		row := f.st.payouts[p.ID]
		row.Status = domain.PayoutFailed
		row.FailureReason = &reason
		row.ProviderDisbursementID = &disb
	}
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	result, err := d.RetryFailed(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, result.Successes, 2)
	assert.Empty(t, result.Failures)

	for _, p := range f.payouts {
		got := f.st.payout(p.ID)
		assert.Equal(t, domain.PayoutProcessing, got.Status)
		assert.Nil(t, got.FailureReason)
		assert.NotEqual(t, disb, *got.ProviderDisbursementID)
	}
	assert.Equal(t, domain.BatchFailed, f.st.batch(f.batch.ID).Status, "batch stays settled")
	assert.Contains(t, f.st.activityTypes(), domain.ActivityPayoutRetried)
	assert.NotContains(t, f.st.outboxTypes(), domain.EventBatchFinalized)
}

func TestRetryFailed_CompletedBatchIsNotReopened(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567")
	f.batch.Status = domain.BatchCompleted
	completedAt := fixedNow.Add(-time.Hour)
	f.batch.CompletedAt = &completedAt
	f.st.payouts[f.payouts[0].ID].Status = domain.PayoutCompleted
	reason := "ACCOUNT_NUMBER_NOT_FOUND"
	failedRow := f.st.payouts[f.payouts[1].ID]
	failedRow.Status = domain.PayoutFailed
	failedRow.FailureReason = &reason

	prov := newFakeProvider()
	prov.failFor["09181234567"] = &provider.ProviderError{StatusCode: 503, Message: "upstream unavailable"}
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	result, err := d.RetryFailed(t.Context(), []uuid.UUID{f.payouts[1].ID}, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)

	b := f.st.batch(f.batch.ID)
	assert.Equal(t, domain.BatchCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)
	assert.True(t, completedAt.Equal(*b.CompletedAt))
	assert.Equal(t, domain.PayoutCompleted, f.st.payout(f.payouts[0].ID).Status)
	assert.Equal(t, domain.PayoutPending, f.st.payout(f.payouts[1].ID).Status)
}

func TestRetryFailed_RecoversBatchWhereEveryDispatchFailed(t *testing.T) {
	f := newDispatchFixture("09171234567", "09181234567")
	prov := newFakeProvider()
	outage := &provider.ProviderError{StatusCode: 400, ErrorCode: "INSUFFICIENT_BALANCE", Message: "top up required"}
	prov.failFor["09171234567"] = outage
	prov.failFor["09181234567"] = outage
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	res, err := d.ProcessBatch(t.Context(), f.batch.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, domain.BatchFailed, res.Status)
	for _, p := range f.payouts {
		require.Equal(t, domain.PayoutPending, f.st.payout(p.ID).Status)
	}

	delete(prov.failFor, "09171234567")
	delete(prov.failFor, "09181234567")
	result, err := d.RetryFailed(t.Context(), f.ids(), uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Successes, 2)
	assert.Equal(t, f.payouts[0].ID, result.Successes[0].PayoutID)
	assert.Equal(t, f.payouts[1].ID, result.Successes[1].PayoutID)

	for _, p := range f.payouts {
		assert.Equal(t, domain.PayoutProcessing, f.st.payout(p.ID).Status)
	}
	assert.Equal(t, domain.BatchFailed, f.st.batch(f.batch.ID).Status)
}

func TestRetryFailed_PendingPayoutOfOpenBatchIsRefused(t *testing.T) {
	f := newDispatchFixture("09171234567")
	f.batch.Status = domain.BatchProcessing
	prov := newFakeProvider()
	d, _ := newTestDispatcher(f.st, prov, &fakeNotifier{}, 1)

	_, err := d.RetryFailed(t.Context(), f.ids(), uuid.New())
	requireAppError(t, err, "VALIDATION_ERROR")
	assert.Empty(t, prov.requests())
}

func TestRetryFailed_NothingToRetry(t *testing.T) {
	f := newDispatchFixture("09171234567")
	d, _ := newTestDispatcher(f.st, newFakeProvider(), &fakeNotifier{}, 1)

	_, err := d.RetryFailed(t.Context(), f.ids(), uuid.New())
	requireAppError(t, err, "VALIDATION_ERROR")
}
