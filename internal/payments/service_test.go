package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitshop/orbitshop/internal/shared"
	"github.com/orbitshop/orbitshop/internal/slipverify"
)

type fakeOrderRow struct {
	status        string
	paymentStatus string
}

// fakeRepo implements Repository and TxRepository in memory, with a
// snapshot-restore WithTx standing in for rollback.
type fakeRepo struct {
	payments map[int64]Payment
	orders   map[int64]fakeOrderRow
	nextID   int64

	duplicateConfirms int
	txCalls           int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments: make(map[int64]Payment),
		orders:   make(map[int64]fakeOrderRow),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	f.txCalls++
	paymentsSnap := make(map[int64]Payment, len(f.payments))
	for k, v := range f.payments {
		paymentsSnap[k] = v
	}
	ordersSnap := make(map[int64]fakeOrderRow, len(f.orders))
	for k, v := range f.orders {
		ordersSnap[k] = v
	}
	nextID := f.nextID

	if err := fn(ctx, f); err != nil {
		f.payments = paymentsSnap
		f.orders = ordersSnap
		f.nextID = nextID
		return err
	}
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*Payment, error) {
	return f.GetPayment(ctx, id)
}

func (f *fakeRepo) GetByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	return f.GetLatestByOrder(ctx, orderID)
}

func (f *fakeRepo) StampReceiptGenerated(ctx context.Context, id int64, at time.Time) error {
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.ReceiptGeneratedAt = &at
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (f *fakeRepo) GetLatestByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	var latest *Payment
	for id := range f.payments {
		p := f.payments[id]
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			latest = &p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (f *fakeRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	f.payments[p.ID] = p
	return p.ID, nil
}

func (f *fakeRepo) ReplaceSlip(ctx context.Context, id int64, slipPath string, amount float64) error {
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.SlipImagePath = &slipPath
	p.Amount = amount
	p.Status = StatusPending
	p.VerifiedAmount = nil
	p.TransferDate = nil
	p.VerificationRaw = nil
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) SetVerification(ctx context.Context, id int64, status Status, verifiedAmount *float64, transferDate *time.Time, raw json.RawMessage) error {
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.VerifiedAmount = verifiedAmount
	p.TransferDate = transferDate
	p.VerificationRaw = raw
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) CountReceiptsOn(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	for _, p := range f.payments {
		if p.ReceiptNumber != nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ConfirmReceipt(ctx context.Context, id int64, receipt string, paymentDate time.Time) error {
	if f.duplicateConfirms > 0 {
		f.duplicateConfirms--
		return ErrDuplicateReceipt
	}
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	if p.ReceiptNumber != nil {
		return nil
	}
	p.ReceiptNumber = &receipt
	p.PaymentDate = &paymentDate
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) MarkOrderPaid(ctx context.Context, orderID int64) error {
	o, ok := f.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	o.paymentStatus = "paid"
	if o.status == "pending" {
		o.status = "paid"
	}
	f.orders[orderID] = o
	return nil
}

type fakeVerifier struct {
	result slipverify.Result
	err    error
	calls  int
}

func (v *fakeVerifier) Verify(ctx context.Context, slipRef string, expectedAmount float64) (slipverify.Result, error) {
	v.calls++
	return v.result, v.err
}

type fakeEnqueuer struct {
	verifications []int64
	renders       []int64
}

func (e *fakeEnqueuer) EnqueueSlipVerification(ctx context.Context, paymentID int64) error {
	e.verifications = append(e.verifications, paymentID)
	return nil
}

func (e *fakeEnqueuer) EnqueueReceiptRender(ctx context.Context, paymentID int64) error {
	e.renders = append(e.renders, paymentID)
	return nil
}

// fakeGuard is an in-memory IdempotencyGuard.
type fakeGuard struct {
	keys    map[string]bool
	deletes []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: make(map[string]bool)}
}

func (g *fakeGuard) CheckAndInsert(ctx context.Context, key, module string) error {
	if g.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[key] = true
	return nil
}

func (g *fakeGuard) Delete(ctx context.Context, key string) error {
	g.deletes = append(g.deletes, key)
	delete(g.keys, key)
	return nil
}

func newTestService(repo *fakeRepo, verifier Verifier, enqueuer Enqueuer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, verifier, enqueuer, nil, nil, logger)
}

func newTestServiceWithGuard(repo *fakeRepo, enqueuer Enqueuer, guard IdempotencyGuard) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, nil, enqueuer, guard, nil, logger)
}

var receiptPattern = regexp.MustCompile(`^RCP-\d{8}-\d{5}$`)

func seedVerified(repo *fakeRepo, orderID int64) int64 {
	repo.orders[orderID] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID++
	amount := 264.0
	repo.payments[repo.nextID] = Payment{
		ID: repo.nextID, OrderID: orderID, Method: MethodBankTransfer,
		Amount: amount, Status: StatusVerified, VerifiedAmount: &amount,
	}
	return repo.nextID
}

func TestConfirmAllocatesReceiptAndMarksOrderPaid(t *testing.T) {
	repo := newFakeRepo()
	enqueuer := &fakeEnqueuer{}
	id := seedVerified(repo, 10)
	svc := newTestService(repo, nil, enqueuer)

	payment, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	require.NotNil(t, payment.ReceiptNumber)
	require.Regexp(t, receiptPattern, *payment.ReceiptNumber)
	require.NotNil(t, payment.PaymentDate)

	require.Equal(t, "paid", repo.orders[10].status)
	require.Equal(t, "paid", repo.orders[10].paymentStatus)
	require.Equal(t, []int64{id}, enqueuer.renders)
}

func TestConfirmTwiceKeepsOneReceipt(t *testing.T) {
	repo := newFakeRepo()
	enqueuer := &fakeEnqueuer{}
	id := seedVerified(repo, 10)
	svc := newTestService(repo, nil, enqueuer)

	first, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	second, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)

	require.Equal(t, *first.ReceiptNumber, *second.ReceiptNumber)
	require.Len(t, enqueuer.renders, 1)
}

func TestConfirmRejectsUnverified(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusPending, Amount: 264}
	svc := newTestService(repo, nil, &fakeEnqueuer{})

	_, err := svc.Confirm(context.Background(), 1, 9)
	require.ErrorIs(t, err, ErrNotVerified)
	require.Equal(t, "pending", repo.orders[10].status)
}

func TestConfirmDoesNotRegressAdvancedOrder(t *testing.T) {
	repo := newFakeRepo()
	id := seedVerified(repo, 10)
	repo.orders[10] = fakeOrderRow{status: "packing", paymentStatus: "pending"}
	svc := newTestService(repo, nil, &fakeEnqueuer{})

	_, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	require.Equal(t, "packing", repo.orders[10].status)
	require.Equal(t, "paid", repo.orders[10].paymentStatus)
}

func TestConfirmRetriesReceiptCollisions(t *testing.T) {
	repo := newFakeRepo()
	id := seedVerified(repo, 10)
	svc := newTestService(repo, nil, &fakeEnqueuer{})

	repo.duplicateConfirms = 2
	payment, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	require.NotNil(t, payment.ReceiptNumber)

	id2 := seedVerified(repo, 11)
	repo.duplicateConfirms = receiptRetries
	_, err = svc.Confirm(context.Background(), id2, 9)
	require.ErrorIs(t, err, ErrReceiptExhausted)
}

func TestConfirmReplayShortCircuitsOnGuardKey(t *testing.T) {
	repo := newFakeRepo()
	enqueuer := &fakeEnqueuer{}
	guard := newFakeGuard()
	id := seedVerified(repo, 10)
	svc := newTestServiceWithGuard(repo, enqueuer, guard)

	first, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	txAfterFirst := repo.txCalls

	// The replay hits the held key and returns the issued receipt without
	// opening another transaction.
	second, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	require.Equal(t, *first.ReceiptNumber, *second.ReceiptNumber)
	require.Equal(t, txAfterFirst, repo.txCalls)
	require.Len(t, enqueuer.renders, 1)
}

func TestConfirmReleasesGuardKeyOnFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusPending, Amount: 264}
	guard := newFakeGuard()
	svc := newTestServiceWithGuard(repo, &fakeEnqueuer{}, guard)

	_, err := svc.Confirm(context.Background(), 1, 9)
	require.ErrorIs(t, err, ErrNotVerified)
	require.Len(t, guard.deletes, 1)
	require.Empty(t, guard.keys)

	// After verification the retry is not misread as a replay.
	amount := 264.0
	p := repo.payments[1]
	p.Status = StatusVerified
	p.VerifiedAmount = &amount
	repo.payments[1] = p

	payment, err := svc.Confirm(context.Background(), 1, 9)
	require.NoError(t, err)
	require.NotNil(t, payment.ReceiptNumber)
}

func TestConfirmProceedsPastStaleGuardKey(t *testing.T) {
	repo := newFakeRepo()
	enqueuer := &fakeEnqueuer{}
	guard := newFakeGuard()
	id := seedVerified(repo, 10)
	// A crashed attempt left the key behind without issuing a receipt.
	guard.keys[fmt.Sprintf("payment-confirm-%d", id)] = true
	svc := newTestServiceWithGuard(repo, enqueuer, guard)

	payment, err := svc.Confirm(context.Background(), id, 9)
	require.NoError(t, err)
	require.NotNil(t, payment.ReceiptNumber)
	require.Equal(t, "paid", repo.orders[10].paymentStatus)
	require.Len(t, enqueuer.renders, 1)
}

func TestUploadSlipReplacesPendingAttempt(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	old := "slips/old.jpg"
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusFailed, SlipImagePath: &old, Amount: 100}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(repo, nil, enqueuer)

	payment, err := svc.UploadSlip(context.Background(), UploadSlipRequest{
		OrderID: 10, Amount: 264, SlipImagePath: "slips/new.jpg",
	})
	require.NoError(t, err)

	require.Equal(t, int64(1), payment.ID)
	require.Equal(t, StatusPending, payment.Status)
	require.Equal(t, "slips/new.jpg", *payment.SlipImagePath)
	require.InDelta(t, 264.0, payment.Amount, 1e-9)
	require.Nil(t, payment.VerificationRaw)
	require.Equal(t, []int64{1}, enqueuer.verifications)
}

func TestUploadSlipCreatesFreshRowAfterVerified(t *testing.T) {
	repo := newFakeRepo()
	id := seedVerified(repo, 10)
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(repo, nil, enqueuer)

	payment, err := svc.UploadSlip(context.Background(), UploadSlipRequest{
		OrderID: 10, Amount: 264, SlipImagePath: "slips/extra.jpg",
	})
	require.NoError(t, err)
	require.NotEqual(t, id, payment.ID)
	require.Equal(t, StatusPending, payment.Status)
}

func TestVerifySlipVerifiedConfirmsInOneTransaction(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	slip := "slips/a.jpg"
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusPending, SlipImagePath: &slip, Amount: 264}

	transfer := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	verifier := &fakeVerifier{result: slipverify.Result{
		Verified:     true,
		Amount:       264,
		TransferDate: &transfer,
		Raw:          json.RawMessage(`{"verified":true,"amount":264}`),
	}}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(repo, verifier, enqueuer)

	payment, err := svc.VerifySlip(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, StatusVerified, payment.Status)
	require.InDelta(t, 264.0, *payment.VerifiedAmount, 1e-9)
	require.Equal(t, transfer, *payment.TransferDate)
	require.JSONEq(t, `{"verified":true,"amount":264}`, string(payment.VerificationRaw))
	require.NotNil(t, payment.ReceiptNumber)
	require.Regexp(t, receiptPattern, *payment.ReceiptNumber)

	require.Equal(t, "paid", repo.orders[10].status)
	require.Equal(t, []int64{1}, enqueuer.renders)
}

func TestVerifySlipFailedVerdictStoresResult(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	slip := "slips/a.jpg"
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusPending, SlipImagePath: &slip, Amount: 264}

	verifier := &fakeVerifier{result: slipverify.Result{
		Verified: false,
		Raw:      json.RawMessage(`{"verified":false}`),
	}}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(repo, verifier, enqueuer)

	payment, err := svc.VerifySlip(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, StatusFailed, payment.Status)
	require.Nil(t, payment.ReceiptNumber)
	require.JSONEq(t, `{"verified":false}`, string(payment.VerificationRaw))
	require.Equal(t, "pending", repo.orders[10].status)
	require.Empty(t, enqueuer.renders)
}

func TestVerifySlipOutageLeavesPaymentPending(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	repo.nextID = 1
	slip := "slips/a.jpg"
	repo.payments[1] = Payment{ID: 1, OrderID: 10, Status: StatusPending, SlipImagePath: &slip, Amount: 264}

	verifier := &fakeVerifier{err: slipverify.ErrUnavailable}
	svc := newTestService(repo, verifier, &fakeEnqueuer{})

	_, err := svc.VerifySlip(context.Background(), 1)
	require.ErrorIs(t, err, slipverify.ErrUnavailable)
	require.Equal(t, StatusPending, repo.payments[1].Status)
}

func TestRecordManualConfirmsImmediately(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = fakeOrderRow{status: "pending", paymentStatus: "pending"}
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(repo, nil, enqueuer)

	transfer := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	payment, err := svc.RecordManual(context.Background(), ManualPaymentRequest{
		OrderID: 10, Amount: 264, Method: MethodCash, TransferDate: &transfer, ActorID: 9,
	})
	require.NoError(t, err)

	require.Equal(t, StatusVerified, payment.Status)
	require.Equal(t, MethodCash, payment.Method)
	require.NotNil(t, payment.ReceiptNumber)
	require.Equal(t, "paid", repo.orders[10].status)
	require.Len(t, enqueuer.renders, 1)
}
