// Command demo runs the engine headless over a simulated vessel fleet and
// serves a live diagnostics feed over websocket at /ws.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/globekit/globekit/internal/core/engine"
	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/events/bus"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/interp"
	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/internal/core/scene"
	"github.com/globekit/globekit/pkg/concurrent"
)

const vesselLayer = "vessels"

func main() {
	var (
		configPath = flag.String("config", "", "engine config file (json or yaml)")
		addr       = flag.String("addr", ":8080", "diagnostics listen address")
		vessels    = flag.Int("vessels", 2000, "simulated vessel count")
		fps        = flag.Int("fps", 30, "frame rate of the headless loop")
	)
	flag.Parse()

	lg := log.New(log.LevelInfo)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		lg.Fatal("config load failed", log.Err(err))
	}
	cfg.Layers = append(cfg.Layers, engine.DefaultLayerConfig(vesselLayer))

	provider := scene.NewFakeProvider()
	provider.LookAt(geo.Vec3{Z: 2_000_000}, geo.Vec3{}, math.Pi/3, 16.0/9.0, 100, 10_000_000)

	eng, err := engine.New(cfg, provider, lg)
	if err != nil {
		lg.Fatal("engine init failed", log.Err(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	if err := populate(ctx, eng, *vessels, start); err != nil {
		lg.Fatal("fleet generation failed", log.Err(err))
	}
	lg.Info("fleet loaded", log.Int("vessels", eng.Count()))

	hub := newHub()
	forwardEvents(eng, hub)

	// The engine is single-threaded; the HTTP handlers read a snapshot
	// refreshed by the frame loop instead of calling the engine directly.
	stats := &statsCache{}

	go frameLoop(ctx, eng, provider, hub, lg, stats, start, *fps)
	go serveDiagnostics(*addr, hub, stats, lg)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-stopCh
	cancel()
	lg.Info("shutting down")
}

func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return engine.Config{}, err
	}
	defer func() { _ = f.Close() }()

	var cfg *engine.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = engine.LoadYAML(f)
	default:
		cfg, err = engine.LoadJSON(f)
	}
	if err != nil {
		return engine.Config{}, err
	}
	return *cfg, nil
}

// populate synthesizes circular vessel trajectories in parallel and feeds
// them to the engine through the chunked batch API.
func populate(ctx context.Context, eng *engine.Engine, n int, start time.Time) error {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	specs, err := concurrent.Map(ctx, idx, 8, func(_ context.Context, i int) (engine.EntitySpec, error) {
		return vesselSpec(i, start), nil
	})
	if err != nil {
		return err
	}
	results, err := eng.AddEntitiesBatch(ctx, specs)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("vessel %s: %w", r.ID, r.Err)
		}
	}
	return nil
}

func vesselSpec(i int, start time.Time) engine.EntitySpec {
	rng := rand.New(rand.NewSource(int64(i)))
	radius := 200_000 + rng.Float64()*1_800_000
	phase := rng.Float64() * 2 * math.Pi
	angular := (0.02 + rng.Float64()*0.08) / 60 // radians per second

	samples := make([]interp.Sample, 0, 60)
	for s := 0; s < 60; s++ {
		t := start.Add(time.Duration(s) * 10 * time.Second)
		a := phase + angular*float64(s*10)
		samples = append(samples, interp.Sample{
			Time: t,
			Position: geo.Vec3{
				X: radius * math.Cos(a),
				Y: radius * math.Sin(a),
				Z: 1000 + rng.Float64()*9000,
			},
			Attributes: map[string]any{"speed_kn": 8 + rng.Float64()*22},
		})
	}

	return engine.EntitySpec{
		ID:         fmt.Sprintf("vessel-%04d", i),
		LayerID:    vesselLayer,
		Type:       entity.TypeTrajectory,
		Trajectory: samples,
		Importance: rng.Float64(),
		Visual: scene.Primitive{
			Icon:  &scene.IconFeature{Image: "vessel.png", Scale: 1, Shadow: true},
			Label: &scene.LabelFeature{Text: fmt.Sprintf("MV Demo %d", i)},
		},
	}
}

// frameLoop drives DrainFrame at the configured rate while slowly orbiting
// the camera so culling and LOD keep recomputing.
func frameLoop(ctx context.Context, eng *engine.Engine, provider *scene.FakeProvider, hub *wsHub, lg log.Log, stats *statsCache, start time.Time, fps int) {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(start).Seconds()
			a := elapsed * 0.05
			provider.LookAt(
				geo.Vec3{X: 2_500_000 * math.Cos(a), Y: 2_500_000 * math.Sin(a), Z: 1_200_000},
				geo.Vec3{},
				math.Pi/3, 16.0/9.0, 100, 10_000_000,
			)

			report := eng.DrainFrame(now)
			if report.FailedOps > 0 {
				lg.Warn("frame had failed ops", log.Int("failed", report.FailedOps))
			}
			stats.set(eng.Stats())
			hub.broadcastJSON(map[string]any{
				"type":     "frame",
				"frame":    report,
				"in_scene": provider.PrimitiveCount(),
			})
		}
	}
}

// forwardEvents mirrors every engine notification onto the websocket hub.
func forwardEvents(eng *engine.Engine, hub *wsHub) {
	for _, eventType := range []string{
		engine.EventEntityCreated,
		engine.EventEntityUpdated,
		engine.EventEntityRemoved,
		engine.EventLODChanged,
		engine.EventQualityChanged,
		engine.EventPerformanceUpdate,
	} {
		eng.Events().Subscribe(eventType, func(evt bus.Event) error {
			hub.broadcastJSON(map[string]any{
				"type": evt.Type,
				"time": evt.Time,
				"data": evt.Data,
			})
			return nil
		})
	}
}

type statsCache struct {
	mu   sync.RWMutex
	snap map[string]any
}

func (s *statsCache) set(v map[string]any) {
	s.mu.Lock()
	s.snap = v
	s.mu.Unlock()
}

func (s *statsCache) get() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func serveDiagnostics(addr string, hub *wsHub, stats *statsCache, lg log.Log) {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cl := &wsClient{conn: c, send: make(chan []byte, 64)}
		hub.add(cl)
		defer func() { hub.remove(cl); _ = c.Close() }()
		for b := range cl.send {
			if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	})
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.get())
	})

	lg.Info("diagnostics listening", log.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		lg.Error("diagnostics server stopped", log.Err(err))
	}
}

// Websocket hub

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

type wsHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func newHub() *wsHub                { return &wsHub{clients: map[*wsClient]struct{}{}} }
func (h *wsHub) add(c *wsClient)    { h.mu.Lock(); h.clients[c] = struct{}{}; h.mu.Unlock() }
func (h *wsHub) remove(c *wsClient) { h.mu.Lock(); delete(h.clients, c); h.mu.Unlock() }

func (h *wsHub) broadcast(b []byte) {
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
		}
	}
	h.mu.RUnlock()
}

func (h *wsHub) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.broadcast(b)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
