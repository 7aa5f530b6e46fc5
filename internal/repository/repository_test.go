package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/testutil"
)

func newInvoice(reservoir string) *model.Invoice {
	return &model.Invoice{Stamp: model.Stamp{Reservoir: reservoir, Endpoint: "stream", Status: model.StatusProcessing}}
}

func TestReservoirUpsert_KeepsEnabled(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReservoirRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.Reservoir{Name: "vt", Platform: "virustotal", Enabled: true, Burst: 1}))
	require.NoError(t, repo.SetEnabled(ctx, "vt", false))
	require.NoError(t, repo.Upsert(ctx, &model.Reservoir{Name: "vt", Platform: "virustotal", Enabled: true, Burst: 4}))

	got, err := repo.GetByName(ctx, "vt")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 4, got.Burst)

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	assert.ErrorIs(t, repo.SetEnabled(ctx, "missing", true), ErrNotFound)
	_, err = repo.GetByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStreamActivate_OnlyOnceUntilDeactivated(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	res := &model.Reservoir{Name: "splunk", Platform: "splunk", Enabled: true}
	require.NoError(t, NewReservoirRepository(db).Upsert(ctx, res))
	repo := NewStreamRepository(db)

	s, started, err := repo.Activate(ctx, res.ID, "stream", newInvoice("splunk"))
	require.NoError(t, err)
	require.True(t, started)
	require.NotNil(t, s.InvoiceID)

	_, started, err = repo.Activate(ctx, res.ID, "stream", newInvoice("splunk"))
	require.NoError(t, err)
	assert.False(t, started)

	var invoices int64
	require.NoError(t, db.Model(&model.Invoice{}).Count(&invoices).Error)
	assert.Equal(t, int64(1), invoices, "refused activation must not write an invoice")

	require.NoError(t, repo.Deactivate(ctx, s.ID))
	s2, started, err := repo.Activate(ctx, res.ID, "stream", newInvoice("splunk"))
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, s.ID, s2.ID, "stream row is reused per reservoir/task")
	assert.NotEqual(t, *s.InvoiceID, *s2.InvoiceID)
}

func TestStreamActivate_ConcurrentCallersSingleWinner(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	res := &model.Reservoir{Name: "es", Platform: "elasticsearch", Enabled: true}
	require.NoError(t, NewReservoirRepository(db).Upsert(ctx, res))
	repo := NewStreamRepository(db)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, started, err := repo.Activate(ctx, res.ID, "stream", newInvoice("es"))
			assert.NoError(t, err)
			if started {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStampRepository_FinishAndList(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewStampRepository(db)

	ok := &model.Invoice{Stamp: model.Stamp{Reservoir: "a", Endpoint: "adhoc_search", Status: model.StatusProcessing}}
	bad := &model.Invoice{Stamp: model.Stamp{Reservoir: "b", Endpoint: "adhoc_search", Status: model.StatusProcessing}}
	require.NoError(t, repo.CreateInvoice(ctx, ok))
	require.NoError(t, repo.CreateInvoice(ctx, bad))
	require.NoError(t, repo.Finish(ctx, ok.StampID, model.StatusOK, 3, ""))
	require.NoError(t, repo.Finish(ctx, bad.StampID, model.StatusFailed, 0, "boom"))

	got, err := repo.GetInvoice(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Stamp.Status)
	assert.Equal(t, "boom", got.Stamp.Notes)

	list, err := repo.ListInvoices(ctx, InvoiceFilter{Reservoir: "a"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Stamp.Count)
	assert.True(t, list[0].Stamp.Succeeded())

	d := &model.Dispatch{Stamp: model.Stamp{Endpoint: "email", Status: model.StatusOK}, AlertID: "al1", Recipient: "x@example.com"}
	require.NoError(t, repo.CreateDispatch(ctx, d))
	ds, err := repo.ListDispatches(ctx, "al1")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "email", ds[0].Stamp.Endpoint)
}

func TestSubscriptionCreate_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)

	require.NoError(t, repo.Create(ctx, "malware", "w1", false))
	require.NoError(t, repo.Create(ctx, "malware", "w1", true))
	require.NoError(t, repo.Create(ctx, "malware", "w2", false))

	subs, err := repo.ListSubscribers(ctx, "malware", 0, 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	byWatcher, err := repo.ListByWatcher(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, byWatcher, 1)
	assert.True(t, byWatcher[0].NotifyEmail)

	require.NoError(t, repo.Delete(ctx, "malware", "w1"))
	subs, err = repo.ListSubscribers(ctx, "malware", 0, 10)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestNodeUpsertByKey_ReturnsExistingID(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewNodeRepository(db)

	a := &model.Node{Key: "process:1:/bin/sh", Kind: model.NodeProcess, Label: "sh"}
	require.NoError(t, repo.UpsertByKey(ctx, a))
	b := &model.Node{Key: "process:1:/bin/sh", Kind: model.NodeProcess, Label: "sh (1)"}
	require.NoError(t, repo.UpsertByKey(ctx, b))
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "sh (1)", b.Label)

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatcherCreate_ConcurrentSameUsername(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewWatcherRepository(db)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, &model.Watcher{ID: fmt.Sprintf("w%d", i), Username: "ben", PasswordHash: "h"})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicate):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)

	var cnt int64
	require.NoError(t, db.Model(&model.Watcher{}).Where("username = ?", "ben").Count(&cnt).Error)
	assert.Equal(t, int64(1), cnt)
}

func TestWatcherCreate_Duplicate(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewWatcherRepository(db)

	require.NoError(t, repo.Create(ctx, &model.Watcher{ID: "w1", Username: "ana", PasswordHash: "h"}))
	assert.ErrorIs(t, repo.Create(ctx, &model.Watcher{ID: "w2", Username: "ana", PasswordHash: "h"}), ErrDuplicate)

	got, err := repo.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.ID)
	m, err := repo.GetByIDs(ctx, []string{"w1", "zz"})
	require.NoError(t, err)
	assert.Len(t, m, 1)
}
