package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/pump"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/database"
)

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		panic(err)
	}
	if err := database.AutoMigrate(db); err != nil {
		panic(err)
	}

	reservoirs := envInt("RESERVOIRS", 16)
	repeat := envInt("REPEAT", 50)
	delay := time.Duration(envInt("DELAY_MS", 20)) * time.Millisecond

	ctx := context.Background()
	resRepo := repository.NewReservoirRepository(db)
	registry := platform.NewRegistry()
	for i := 0; i < reservoirs; i++ {
		name := fmt.Sprintf("bench-%02d", i)
		if err := resRepo.Upsert(ctx, &model.Reservoir{Name: name, Platform: platform.PlatformStub, Enabled: true}); err != nil {
			panic(err)
		}
		// 模拟第三方延迟抖动
		jitter := time.Duration(rand.Int63n(int64(delay) + 1))
		registry.Register(name, &platform.Stub{
			Caps:    query.Capabilities{SearchTerms: true},
			Delay:   delay/2 + jitter,
			Records: []platform.Record{{"id": name, "value": "hit"}},
		}, 0, 1)
	}
	room := pump.NewPumpRoom(resRepo, registry, repository.NewStampRepository(db))
	q := query.ReservoirQuery{SearchTerms: []string{"evil.example"}}

	single := func() time.Duration {
		st := time.Now()
		ep, _, _ := registry.Lookup("bench-00")
		_, _ = ep.Search(ctx, q)
		return time.Since(st)
	}
	fanout := func() (time.Duration, int) {
		st := time.Now()
		failed := 0
		for _, c := range room.GetResults(ctx, q, nil) {
			if !c.OK() {
				failed++
			}
		}
		return time.Since(st), failed
	}

	singles := make([]time.Duration, 0, repeat)
	fanouts := make([]time.Duration, 0, repeat)
	failures := 0
	for i := 0; i < repeat; i++ {
		singles = append(singles, single())
	}
	for i := 0; i < repeat; i++ {
		d, f := fanout()
		fanouts = append(fanouts, d)
		failures += f
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}
	avg := func(vs []time.Duration) time.Duration {
		var sum time.Duration
		for _, d := range vs {
			sum += d
		}
		return sum / time.Duration(len(vs))
	}

	fmt.Printf("RESERVOIRS=%d REPEAT=%d DELAY=%v\n", reservoirs, repeat, delay)
	fmt.Printf("Single endpoint call: avg=%v p95=%v p99=%v\n", avg(singles), pct(singles, 0.95), pct(singles, 0.99))
	fmt.Printf("PumpRoom fan-out over %d reservoirs: avg=%v p95=%v p99=%v failed=%d\n",
		reservoirs, avg(fanouts), pct(fanouts, 0.95), pct(fanouts, 0.99), failures)
}
