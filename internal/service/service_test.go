package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/cache"
	"github.com/d60-Lab/pumproom/internal/distill"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/pump"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/testutil"
)

type fakeDialer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func logonsDistillery() *distill.Distillery {
	return distill.FromConfig(config.DistilleryConfig{
		Name:      "logons",
		Reservoir: "es",
		Fields: []config.FieldConfig{
			{Name: "user", Path: "user.name"},
			{Name: "port", Path: "port", Type: distill.TypeInt},
		},
	})
}

func newDistillery(db *gorm.DB) *Distillery {
	recent := cache.NewRecentDocuments(repository.NewDocumentRepository(db), nil, time.Minute)
	return NewDistillery(db, recent, []*distill.Distillery{logonsDistillery()})
}

func records() []platform.Record {
	return []platform.Record{
		{"user": map[string]any{"name": "alice"}, "port": float64(22)},
		{"user": map[string]any{"name": "bob"}, "port": "not-a-port"},
	}
}

func TestDistillery_WritesDocumentsAndOutbox(t *testing.T) {
	db := testutil.NewDB(t)
	d := newDistillery(db)
	ctx := context.Background()

	written, err := d.Distill(ctx, "es", records())
	require.NoError(t, err)
	require.Len(t, written["logons"], 2)

	var docs, outbox int64
	require.NoError(t, db.Model(&model.Document{}).Count(&docs).Error)
	require.NoError(t, db.Model(&model.Outbox{}).Where("status = ?", model.OutboxPending).Count(&outbox).Error)
	assert.Equal(t, int64(2), docs)
	assert.Equal(t, int64(2), outbox)

	page, err := d.Documents(ctx, "logons", 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	var sawBob bool
	for _, doc := range page {
		if strings.Contains(string(doc.Fields), "bob") {
			sawBob = true
			assert.NotContains(t, string(doc.Fields), "port")
		}
	}
	assert.True(t, sawBob)

	none, err := d.Distill(ctx, "splunk", records())
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = d.Documents(ctx, "nope", 1, 10)
	assert.ErrorIs(t, err, ErrUnknownDistillery)
	assert.Equal(t, []string{"logons"}, d.Names())
}

func TestDistillery_CachedAndStoredOrderAgree(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	docRepo := repository.NewDocumentRepository(db)
	d := NewDistillery(db, cache.NewRecentDocuments(docRepo, rdb, time.Minute), []*distill.Distillery{logonsDistillery()})
	batch := func(users ...string) []platform.Record {
		recs := make([]platform.Record, 0, len(users))
		for _, u := range users {
			recs = append(recs, platform.Record{"user": map[string]any{"name": u}, "port": float64(22)})
		}
		return recs
	}
	userOf := func(doc *model.Document) string {
		var f map[string]any
		require.NoError(t, json.Unmarshal(doc.Fields, &f))
		name, _ := f["user"].(string)
		return name
	}

	_, err := d.Distill(ctx, "es", batch("a1", "a2", "a3"))
	require.NoError(t, err)
	// 第一次读取从库里建好缓存索引，之后的写入走 LPUSHX
	_, err = d.Documents(ctx, "logons", 1, 10)
	require.NoError(t, err)
	_, err = d.Distill(ctx, "es", batch("b1", "b2", "b3"))
	require.NoError(t, err)

	warm, err := d.Documents(ctx, "logons", 1, 10)
	require.NoError(t, err)
	stored, err := docRepo.ListByDistillery(ctx, "logons", 0, 10)
	require.NoError(t, err)
	require.Len(t, warm, 6)
	require.Len(t, stored, 6)

	var warmUsers, storedUsers []string
	for i := range warm {
		warmUsers = append(warmUsers, userOf(warm[i]))
		storedUsers = append(storedUsers, userOf(stored[i]))
	}
	want := []string{"b3", "b2", "b1", "a3", "a2", "a1"}
	assert.Equal(t, want, warmUsers)
	assert.Equal(t, want, storedUsers)

	total, err := d.DocumentTotal(ctx, "logons")
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	_, err = d.DocumentTotal(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownDistillery)
}

func TestAlertFanout_ProcessOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	d := newDistillery(db)
	watchers := repository.NewWatcherRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	stamps := repository.NewStampRepository(db)

	require.NoError(t, watchers.Create(ctx, &model.Watcher{ID: "w1", Username: "ana", Email: "ana@example.com", PasswordHash: "x"}))
	require.NoError(t, watchers.Create(ctx, &model.Watcher{ID: "w2", Username: "ben", PasswordHash: "x"}))
	require.NoError(t, subs.Create(ctx, "logons", "w1", true))
	require.NoError(t, subs.Create(ctx, "logons", "w2", false))

	dialer := &fakeDialer{}
	notifier := NewNotifierWithDialer(dialer, "pumproom@example.com", stamps)
	w := NewAlertFanout(db, subs, watchers, notifier, 1, 1, 10, time.Millisecond)

	written, err := d.Distill(ctx, "es", records()[:1])
	require.NoError(t, err)
	docID := written["logons"][0]

	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alerts := repository.NewAlertRepository(db)
	for _, id := range []string{"w1", "w2"} {
		list, err := alerts.ListByWatcher(ctx, id, 0, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, docID, list[0].DocumentID)
	}

	var ob model.Outbox
	require.NoError(t, db.Where("document_id = ?", docID).First(&ob).Error)
	assert.Equal(t, model.OutboxDone, ob.Status)
	assert.Equal(t, int64(2), ob.FanoutCount)
	assert.NotNil(t, ob.ProcessedAt)

	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"ana@example.com"}, dialer.sent[0].GetHeader("To"))

	list, err := alerts.ListByWatcher(ctx, "w1", 0, 1)
	require.NoError(t, err)
	ds, err := stamps.ListDispatches(ctx, list[0].ID)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, model.StatusOK, ds[0].Stamp.Status)

	n, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	st := w.Stats()
	assert.Equal(t, int64(1), st.Processed)
	assert.Zero(t, st.Failed)
	assert.Greater(t, st.LastLag, time.Duration(0))
}

// 第二页订阅者读取失败一次，重试时不能给第一页的订阅者重复发信
type flakySubscriptions struct {
	repository.SubscriptionRepository
	mu     sync.Mutex
	failed bool
}

func (f *flakySubscriptions) ListSubscribers(ctx context.Context, distillery string, offset, limit int) ([]*model.Subscription, error) {
	f.mu.Lock()
	if offset > 0 && !f.failed {
		f.failed = true
		f.mu.Unlock()
		return nil, errors.New("db: connection reset")
	}
	f.mu.Unlock()
	return f.SubscriptionRepository.ListSubscribers(ctx, distillery, offset, limit)
}

func TestAlertFanout_RetryDoesNotResendMail(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	watchers := repository.NewWatcherRepository(db)
	stamps := repository.NewStampRepository(db)
	base := repository.NewSubscriptionRepository(db)

	require.NoError(t, watchers.Create(ctx, &model.Watcher{ID: "w1", Username: "ana", Email: "ana@example.com", PasswordHash: "x"}))
	require.NoError(t, watchers.Create(ctx, &model.Watcher{ID: "w2", Username: "ben", Email: "ben@example.com", PasswordHash: "x"}))
	require.NoError(t, base.Create(ctx, "logons", "w1", true))
	require.NoError(t, base.Create(ctx, "logons", "w2", true))

	dialer := &fakeDialer{}
	notifier := NewNotifierWithDialer(dialer, "pumproom@example.com", stamps)
	subs := &flakySubscriptions{SubscriptionRepository: base}
	w := NewAlertFanout(db, subs, watchers, notifier, 1, 1, 10, time.Millisecond)

	written, err := newDistillery(db).Distill(ctx, "es", records()[:1])
	require.NoError(t, err)
	docID := written["logons"][0]

	_, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	var ob model.Outbox
	require.NoError(t, db.Where("document_id = ?", docID).First(&ob).Error)
	assert.Equal(t, model.OutboxPending, ob.Status)
	assert.Equal(t, int64(1), w.Stats().Failed)

	_, err = w.ProcessOnce(ctx)
	require.NoError(t, err)

	var alertCount, dispatchCount int64
	require.NoError(t, db.Model(&model.Alert{}).Where("document_id = ?", docID).Count(&alertCount).Error)
	require.NoError(t, db.Model(&model.Dispatch{}).Count(&dispatchCount).Error)
	assert.Equal(t, int64(2), alertCount)
	assert.Equal(t, int64(2), dispatchCount)

	require.Len(t, dialer.sent, 2)
	var to []string
	for _, m := range dialer.sent {
		to = append(to, m.GetHeader("To")...)
	}
	assert.ElementsMatch(t, []string{"ana@example.com", "ben@example.com"}, to)

	require.NoError(t, db.Where("document_id = ?", docID).First(&ob).Error)
	assert.Equal(t, model.OutboxDone, ob.Status)
	assert.Equal(t, int64(2), ob.FanoutCount)
}

func TestNotifier_FailureRecordsDispatch(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	stamps := repository.NewStampRepository(db)
	n := NewNotifierWithDialer(&fakeDialer{err: errors.New("smtp: 421")}, "from@example.com", stamps)

	alert := &model.Alert{ID: "a1", Distillery: "logons", DocumentID: "d1"}
	err := n.NotifyAlert(ctx, alert, &model.Watcher{ID: "w1", Email: "w@example.com"}, map[string]any{"user": "alice"})
	assert.Error(t, err)

	ds, err := stamps.ListDispatches(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, model.StatusFailed, ds[0].Stamp.Status)
	assert.Contains(t, ds[0].Stamp.Notes, "421")
	assert.Equal(t, "w@example.com", ds[0].Recipient)

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.NotifyAlert(ctx, alert, &model.Watcher{Email: "x@example.com"}, nil))
	assert.Nil(t, NewNotifier(config.MailConfig{}, stamps))
}

func TestAlertFanout_StartStop(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	subs := repository.NewSubscriptionRepository(db)
	require.NoError(t, subs.Create(ctx, "logons", "w1", false))
	w := NewAlertFanout(db, subs, repository.NewWatcherRepository(db), nil, 2, 10, 10, 5*time.Millisecond)
	stop := w.Start()

	_, err := newDistillery(db).Distill(ctx, "es", records())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var pending int64
		db.Model(&model.Outbox{}).Where("status <> ?", model.OutboxDone).Count(&pending)
		return pending == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, stop(ctx))

	cnt, err := repository.NewAlertRepository(db).CountByWatcher(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)
}

func newGraph(t *testing.T) (GraphService, *EdgeReplicator, repository.NodeRepository, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	nodes := repository.NewNodeRepository(db)
	inRepo := repository.NewIncomingEdgeRepository(db)
	rep := NewEdgeReplicator(inRepo, 100)
	stop := rep.Start(2)
	t.Cleanup(func() { _ = stop(context.Background()) })
	return NewGraphService(nodes, repository.NewEdgeRepository(db), inRepo, rep), rep, nodes, db
}

func TestGraphService_LinkReplicatesIncoming(t *testing.T) {
	svc, rep, nodes, _ := newGraph(t)
	ctx := context.Background()

	p := &model.Node{Key: "process:1:sh", Kind: model.NodeProcess, Label: "sh"}
	f := &model.Node{Key: "file:/etc/passwd", Kind: model.NodeFile, Label: "passwd"}
	require.NoError(t, nodes.UpsertByKey(ctx, p))
	require.NoError(t, nodes.UpsertByKey(ctx, f))

	require.NoError(t, svc.Link(ctx, p.ID, f.ID, "read"))
	rep.Drain()
	st := rep.Stats()
	assert.Equal(t, int64(1), st.Applied)
	assert.Zero(t, st.Queued)

	out, err := svc.ListOutgoing(ctx, p.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	in, err := svc.ListIncoming(ctx, f.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, p.ID, in[0].SourceID)

	require.NoError(t, svc.Unlink(ctx, p.ID, f.ID, "read"))
	rep.Drain()
	assert.Equal(t, int64(2), rep.Stats().Applied)
	in, err = svc.ListIncoming(ctx, f.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, in)

	assert.ErrorIs(t, svc.Link(ctx, p.ID, p.ID, "read"), ErrSelfLoop)
	assert.ErrorIs(t, svc.Link(ctx, p.ID, "ghost", "read"), ErrNodeNotFound)
	_, err = svc.GetNode(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGraphService_ImportIsIdempotent(t *testing.T) {
	svc, rep, _, db := newGraph(t)
	ctx := context.Background()
	report := `{"alert":[{"explanation":{"os-changes":[{
		"process":[{"pid":2,"ppid":1,"value":"/bin/sh","parentname":"/sbin/init"}],
		"file":[{"value":"/tmp/x","mode":"created","processinfo":{"pid":2,"imagepath":"/bin/sh"}}]
	}]}}]}`

	res, err := svc.Import(ctx, "fireeye-ax", strings.NewReader(report))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Nodes)
	assert.Equal(t, 2, res.Edges)

	_, err = svc.Import(ctx, "fireeye-ax", strings.NewReader(report))
	require.NoError(t, err)
	rep.Drain()

	var nodeCount, edgeCount, inCount int64
	require.NoError(t, db.Model(&model.Node{}).Count(&nodeCount).Error)
	require.NoError(t, db.Model(&model.Edge{}).Count(&edgeCount).Error)
	require.NoError(t, db.Model(&model.IncomingEdge{}).Count(&inCount).Error)
	assert.Equal(t, int64(3), nodeCount)
	assert.Equal(t, int64(2), edgeCount)
	assert.Equal(t, int64(2), inCount)

	_, err = svc.Import(ctx, "pcap", strings.NewReader(""))
	assert.Error(t, err)
}

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	db := testutil.NewDB(t)
	return NewAuthService(repository.NewWatcherRepository(db), config.JWTConfig{Secret: "0123456789abcdef-test", TTL: time.Hour, Issuer: "pumproom"})
}

func TestAuthService_RegisterLoginParse(t *testing.T) {
	s := newAuth(t)
	ctx := context.Background()

	w, err := s.Register(ctx, "ana", "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", w.PasswordHash)

	_, err = s.Register(ctx, "ana", "", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	token, got, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, w.ID, claims.Subject)
	assert.Equal(t, "ana", claims.Username)

	_, _, err = s.Login(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	s := newAuth(t)
	ctx := context.Background()
	cfg := config.AdminConfig{Username: "admin", Password: "admin-pass"}

	require.NoError(t, s.EnsureAdmin(ctx, cfg))
	require.NoError(t, s.EnsureAdmin(ctx, cfg))
	_, _, err := s.Login(ctx, "admin", "admin-pass")
	require.NoError(t, err)

	require.NoError(t, s.EnsureAdmin(ctx, config.AdminConfig{}))
}

func newSearch(t *testing.T) (*SearchService, *gorm.DB, repository.ReservoirRepository, *platform.Registry) {
	t.Helper()
	db := testutil.NewDB(t)
	res := repository.NewReservoirRepository(db)
	reg := platform.NewRegistry()
	room := pump.NewPumpRoom(res, reg, repository.NewStampRepository(db))
	return NewSearchService(room, newDistillery(db)), db, res, reg
}

func TestSearchService(t *testing.T) {
	s, db, res, reg := newSearch(t)
	ctx := context.Background()
	require.NoError(t, NewReservoirService(res).Sync(ctx, []config.ReservoirConfig{
		{Name: "es", Platform: platform.PlatformStub, Enabled: true},
		{Name: "down", Platform: platform.PlatformStub, Enabled: true},
	}))
	caps := query.Capabilities{SearchTerms: true}
	reg.Register("es", &platform.Stub{Caps: caps, Records: records()}, 0, 1)
	reg.Register("down", &platform.Stub{Caps: caps, Err: errors.New("timeout")}, 0, 1)

	_, err := s.Search(ctx, query.ReservoirQuery{}, nil, false)
	var iq *ErrInvalidQuery
	require.ErrorAs(t, err, &iq)
	assert.ErrorIs(t, err, query.ErrEmpty)

	bad := query.ReservoirQuery{SearchTerms: []string{"x"}, TimeFrame: query.TimeFrame{Start: time.Now(), End: time.Now().Add(-time.Hour)}}
	_, err = s.Search(ctx, bad, nil, false)
	require.ErrorAs(t, err, &iq)

	out, err := s.Search(ctx, query.ReservoirQuery{SearchTerms: []string{"ssh"}}, nil, true)
	require.NoError(t, err)
	require.Len(t, out.Cargo, 2)
	assert.Equal(t, "down", out.Cargo[0].Reservoir)
	assert.False(t, out.Cargo[0].OK())
	assert.True(t, out.Cargo[1].OK())
	assert.Len(t, out.Distilled["logons"], 2)

	var docs int64
	require.NoError(t, db.Model(&model.Document{}).Count(&docs).Error)
	assert.Equal(t, int64(2), docs)
}

func TestScheduler(t *testing.T) {
	s, db, res, reg := newSearch(t)
	ctx := context.Background()
	require.NoError(t, res.Upsert(ctx, &model.Reservoir{Name: "es", Platform: platform.PlatformStub, Enabled: true}))

	var seen query.ReservoirQuery
	reg.Register("es", &platform.Stub{
		Caps: query.Capabilities{Accounts: true, TimeFrame: true},
		Hook: func(_ context.Context, q query.ReservoirQuery) ([]platform.Record, error) {
			seen = q
			return records()[:1], nil
		},
	}, 0, 1)

	sch := NewScheduler(ctx, s)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sch.now = func() time.Time { return fixed }

	_, err := sch.Add(config.ScheduleConfig{Name: "bad", Spec: "not a spec"})
	assert.Error(t, err)
	_, err = sch.Add(config.ScheduleConfig{Name: "hourly", Spec: "0 0 * * * *", Accounts: []string{"alice"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sch.Entries())

	sch.Run(ctx, config.ScheduleConfig{Name: "now", Accounts: []string{"alice"}, Lookback: time.Hour})
	assert.Equal(t, []string{"alice"}, seen.Accounts)
	assert.Equal(t, fixed.Add(-time.Hour), seen.TimeFrame.Start)
	assert.Equal(t, fixed, seen.TimeFrame.End)

	var docs int64
	require.NoError(t, db.Model(&model.Document{}).Count(&docs).Error)
	assert.Equal(t, int64(1), docs)

	sch.Start()
	sch.Stop()
}

func TestReservoirService_SyncKeepsToggle(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewReservoirService(repository.NewReservoirRepository(db))
	cfg := []config.ReservoirConfig{{Name: "vt", Platform: "virustotal", Enabled: true, RatePerSec: 4, Burst: 2}}

	require.NoError(t, svc.Sync(ctx, cfg))
	r, err := svc.SetEnabled(ctx, "vt", false)
	require.NoError(t, err)
	assert.False(t, r.Enabled)

	require.NoError(t, svc.Sync(ctx, cfg))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)
	assert.Equal(t, 4.0, list[0].RatePerSec)

	_, err = svc.SetEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAlertService(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewAlertService(repository.NewSubscriptionRepository(db), repository.NewAlertRepository(db), newDistillery(db))

	assert.ErrorIs(t, svc.Subscribe(ctx, "nope", "w1", false), ErrUnknownDistillery)
	require.NoError(t, svc.Subscribe(ctx, "logons", "w1", true))
	subs, err := svc.Subscriptions(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, db.Create(&model.Alert{ID: "a1", WatcherID: "w1", DocumentID: "d1", Distillery: "logons", Score: 1}).Error)
	require.NoError(t, db.Create(&model.Alert{ID: "a2", WatcherID: "w1", DocumentID: "d2", Distillery: "logons", Score: 2}).Error)
	list, total, err := svc.Alerts(ctx, "w1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, "a2", list[0].ID)

	require.NoError(t, svc.Unsubscribe(ctx, "logons", "w1"))
	subs, err = svc.Subscriptions(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
