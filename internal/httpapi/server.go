// Package httpapi exposes the small operational surface of spec §6:
// /healthz, /snapshot, /session, over gin with gin-contrib/cors, matching
// the teacher's cmd/ares/main.go gin router pattern scaled down to what
// this simulator needs. The resource panel on /healthz is grounded on the
// teacher's SystemHealthController (gopsutil CPU/mem reporting), trimmed to
// the fields relevant to a single-process simulator (no PostgreSQL/network
// probing — this process doesn't own a long-lived pg connection worth
// reporting separately from the store it already uses).
package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"mirrorcurve/internal/simstore"
	"mirrorcurve/internal/types"
)

// Server is the status/introspection HTTP surface. It never reads wallet or
// curve state directly — only the processor goroutine is permitted to do
// that (spec §5) — and instead serves the last snapshot the processor
// persisted via simstore.Store.LatestSnapshot.
type Server struct {
	engine    *gin.Engine
	trades    *simstore.Store
	sessionID string
	mode      types.Mode
	startedAt time.Time
}

// New builds the gin engine with cors, throttling, and the three routes
// spec §6 names.
func New(trades *simstore.Store, sessionID string, mode types.Mode) *Server {
	s := &Server{
		trades:    trades,
		sessionID: sessionID, mode: mode, startedAt: time.Now(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(throttle(rate.Limit(20), 40))

	engine.GET("/healthz", s.getHealthz)
	engine.GET("/snapshot", s.getSnapshot)
	engine.GET("/session", s.getSession)

	s.engine = engine
	return s
}

// Run starts the server on addr and blocks until ctx is canceled, at which
// point it shuts down gracefully with a 5s drain window — the same pattern
// as the teacher's cmd/ares/main.go signal-triggered srv.Shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// throttle applies a token-bucket rate limit to every request, shedding
// load past burst with 429 rather than queueing (operational surface only
// — never the core pipeline, which has its own back-pressure policy).
func throttle(r rate.Limit, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(r, burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Mode          string  `json:"mode"`
	GoVersion     string  `json:"go_version"`
	NumGoroutine  int     `json:"num_goroutine"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemUsedPct    float64 `json:"mem_used_percent"`
}

func (s *Server) getHealthz(c *gin.Context) {
	resp := healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Mode:          string(s.mode),
		GoVersion:     runtime.Version(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedBytes = vmStat.Used
		resp.MemUsedPct = vmStat.UsedPercent
	}

	c.JSON(http.StatusOK, resp)
}

// getSnapshot serves the last snapshot the processor persisted — it never
// computes one live, since that would require reading wallet/curve state
// from this goroutine (spec §5 reserves those mutations and reads to the
// processor alone).
func (s *Server) getSnapshot(c *gin.Context) {
	snap, ok, err := s.trades.LatestSnapshot(s.sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot taken yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getSession(c *gin.Context) {
	resp := gin.H{
		"session_id": s.sessionID,
		"mode":       s.mode,
		"started_at": s.startedAt,
	}

	snap, ok, err := s.trades.LatestSnapshot(s.sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ok {
		resp["stats"] = snap
	}
	c.JSON(http.StatusOK, resp)
}
