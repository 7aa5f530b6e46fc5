package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/testutil"
)

type recordingSink struct {
	mu      sync.Mutex
	batches int
	records []platform.Record
}

func (s *recordingSink) Accept(_ context.Context, _ string, recs []platform.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.records = append(s.records, recs...)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// searchOnly 不实现 Streamer
type searchOnly struct{}

func (searchOnly) Platform() string                 { return "virustotal" }
func (searchOnly) Capabilities() query.Capabilities { return query.Capabilities{SearchTerms: true} }
func (searchOnly) Search(context.Context, query.ReservoirQuery) ([]platform.Record, error) {
	return nil, nil
}

type fixture struct {
	ctl      *Controller
	registry *platform.Registry
	res      repository.ReservoirRepository
	stamps   repository.StampRepository
	streams  repository.StreamRepository
	sink     *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		registry: platform.NewRegistry(),
		res:      repository.NewReservoirRepository(db),
		stamps:   repository.NewStampRepository(db),
		streams:  repository.NewStreamRepository(db),
		sink:     &recordingSink{},
	}
	f.ctl = NewController(context.Background(), f.res, f.streams, f.stamps, f.registry, f.sink)
	t.Cleanup(f.ctl.Wait)
	return f
}

func (f *fixture) add(t *testing.T, name string, ep platform.Endpoint, enabled bool) *model.Reservoir {
	t.Helper()
	r := &model.Reservoir{Name: name, Platform: ep.Platform(), Enabled: enabled}
	require.NoError(t, f.res.Upsert(context.Background(), r))
	f.registry.Register(name, ep, 0, 1)
	return r
}

func terms() query.ReservoirQuery { return query.ReservoirQuery{SearchTerms: []string{"mimikatz"}} }

func blockingStub(release <-chan struct{}, recs []platform.Record) *platform.Stub {
	return &platform.Stub{
		Caps: query.Capabilities{SearchTerms: true},
		Hook: func(ctx context.Context, _ query.ReservoirQuery) ([]platform.Record, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return recs, nil
		},
	}
}

func TestStart_ConcurrentCallsExactlyOneStarts(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	res := f.add(t, "splunk", blockingStub(release, []platform.Record{{"a": 1}, {"a": 2}}), true)

	var (
		wg      sync.WaitGroup
		results = make([]bool, 2)
		errs    = make([]error, 2)
	)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.ctl.Start(context.Background(), "splunk", terms(), nil)
		}(i)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0] != results[1], "exactly one Start must win: %v", results)

	s, err := f.streams.Get(context.Background(), res.ID, TaskStream)
	require.NoError(t, err)
	assert.True(t, s.Active)
	require.NotNil(t, s.InvoiceID)

	close(release)
	f.ctl.Wait()

	s, err = f.streams.Get(context.Background(), res.ID, TaskStream)
	require.NoError(t, err)
	assert.False(t, s.Active)

	inv, err := f.stamps.GetInvoice(context.Background(), *s.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, inv.Stamp.Status)
	assert.Equal(t, 2, inv.Stamp.Count)
	assert.Equal(t, TaskStream, inv.Stamp.Endpoint)
	assert.Equal(t, 2, f.sink.Len())

	invoices, err := f.stamps.ListInvoices(context.Background(), repository.InvoiceFilter{Reservoir: "splunk"})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestStart_CanRestartAfterFinish(t *testing.T) {
	f := newFixture(t)
	f.add(t, "es", &platform.Stub{Caps: query.Capabilities{SearchTerms: true}, Records: []platform.Record{{"x": 1}}}, true)

	ok, err := f.ctl.Start(context.Background(), "es", terms(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	f.ctl.Wait()

	ok, err = f.ctl.Start(context.Background(), "es", terms(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	f.ctl.Wait()
	assert.Equal(t, 2, f.sink.Len())
}

func TestStart_PanicStillDeactivates(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "bad", &platform.Stub{
		Caps: query.Capabilities{SearchTerms: true},
		Hook: func(context.Context, query.ReservoirQuery) ([]platform.Record, error) { panic("decoder exploded") },
	}, true)

	ok, err := f.ctl.Start(context.Background(), "bad", terms(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	f.ctl.Wait()

	s, err := f.streams.Get(context.Background(), res.ID, TaskStream)
	require.NoError(t, err)
	assert.False(t, s.Active)
	inv, err := f.stamps.GetInvoice(context.Background(), *s.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, inv.Stamp.Status)
	assert.Contains(t, inv.Stamp.Notes, "decoder exploded")
}

func TestStart_ErrorRecordsNotes(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "flaky", &platform.Stub{Caps: query.Capabilities{SearchTerms: true}, Err: errors.New("503 from upstream")}, true)

	ok, err := f.ctl.Start(context.Background(), "flaky", terms(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	f.ctl.Wait()

	s, err := f.streams.Get(context.Background(), res.ID, TaskStream)
	require.NoError(t, err)
	inv, err := f.stamps.GetInvoice(context.Background(), *s.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, inv.Stamp.Status)
	assert.Equal(t, "503 from upstream", inv.Stamp.Notes)
}

func TestStart_RequestContextDoesNotCancelStream(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.add(t, "long", blockingStub(release, []platform.Record{{"k": "v"}}), true)

	reqCtx, cancel := context.WithCancel(context.Background())
	ok, err := f.ctl.Start(reqCtx, "long", terms(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	cancel()

	time.Sleep(20 * time.Millisecond)
	close(release)
	f.ctl.Wait()
	assert.Equal(t, 1, f.sink.Len())
}

func TestStart_TypedErrors(t *testing.T) {
	f := newFixture(t)
	f.add(t, "vt", searchOnly{}, true)
	f.add(t, "off", &platform.Stub{Caps: query.Capabilities{SearchTerms: true}}, false)
	require.NoError(t, f.res.Upsert(context.Background(), &model.Reservoir{Name: "unregistered", Platform: "splunk", Enabled: true}))

	_, err := f.ctl.Start(context.Background(), "missing", terms(), nil)
	assert.ErrorIs(t, err, ErrReservoirNotFound)
	_, err = f.ctl.Start(context.Background(), "off", terms(), nil)
	assert.ErrorIs(t, err, ErrReservoirDisabled)
	_, err = f.ctl.Start(context.Background(), "vt", terms(), nil)
	assert.ErrorIs(t, err, ErrStreamUnsupported)
	_, err = f.ctl.Start(context.Background(), "unregistered", terms(), nil)
	assert.ErrorIs(t, err, ErrReservoirNotFound)
}

func TestStart_EmptyFilteredQuery(t *testing.T) {
	f := newFixture(t)
	f.add(t, "geo", &platform.Stub{Caps: query.Capabilities{Locations: true}}, true)

	ok, err := f.ctl.Start(context.Background(), "geo", terms(), nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, query.ErrEmpty)

	streams, err := f.ctl.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestStream_BatchesToSink(t *testing.T) {
	f := newFixture(t)
	f.ctl.batch = 2
	recs := []platform.Record{{"i": 1}, {"i": 2}, {"i": 3}, {"i": 4}, {"i": 5}}
	f.add(t, "bulk", &platform.Stub{Caps: query.Capabilities{SearchTerms: true}, Records: recs}, true)

	ok, err := f.ctl.Start(context.Background(), "bulk", terms(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	f.ctl.Wait()

	assert.Equal(t, 5, f.sink.Len())
	assert.Equal(t, 3, f.sink.batches)
}
