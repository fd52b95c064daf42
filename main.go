package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/lastlight-game/server/api/rest"
	"github.com/lastlight-game/server/api/sse"
	apows "github.com/lastlight-game/server/api/ws"
	"github.com/lastlight-game/server/audit"
	"github.com/lastlight-game/server/cache"
	"github.com/lastlight-game/server/config"
	dbadapter "github.com/lastlight-game/server/db"
	"github.com/lastlight-game/server/game/ai"
	"github.com/lastlight-game/server/game/combat"
	"github.com/lastlight-game/server/game/events"
	"github.com/lastlight-game/server/game/limiter"
	"github.com/lastlight-game/server/game/player"
	"github.com/lastlight-game/server/game/profile"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/game/world"
	mw "github.com/lastlight-game/server/middleware"
	"github.com/lastlight-game/server/model"
	"github.com/lastlight-game/server/resource"
	"github.com/lastlight-game/server/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.New(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Static game data ----
	res := resource.NewLoader(cfg.Resource.Dir, logger)
	if err := res.Load(); err != nil {
		log.Fatalf("resources: %v", err)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Services ----
	sm := player.NewSessionManager(logger)
	profiles := profile.New(db, c, logger)

	// ---- Simulation ----
	tick := time.Duration(cfg.Sim.TickMs) * time.Millisecond
	bounds := sim.Vec3{X: cfg.Sim.BoundsX, Y: cfg.Sim.BoundsY}

	grid := ai.NewNavGrid(
		int(cfg.Sim.BoundsX/cfg.Sim.NavCellSize),
		int(cfg.Sim.BoundsY/cfg.Sim.NavCellSize),
		cfg.Sim.NavCellSize,
	)

	match := world.NewMatch(world.Config{
		MatchID:      "arena-1",
		MaxEntities:  cfg.Sim.MaxEntities,
		GracePeriod:  time.Duration(cfg.Sim.GraceMs) * time.Millisecond,
		TickInterval: tick,
		Bounds:       bounds,
		MaxMoveStep:  cfg.Sim.MaxMoveStep,
		Combat: combat.Config{
			ImmunityWindow:   time.Duration(cfg.Sim.ImmunityMs) * time.Millisecond,
			MaxClaimedDamage: cfg.Sim.MaxClaimedDamage,
		},
		RateRules: map[string]limiter.Rule{
			world.OpWeaponFire: {MaxCalls: cfg.Sim.FirePerSecond, Window: time.Second},
			world.OpHitReport:  {MaxCalls: cfg.Sim.HitsPerSecond, Window: time.Second},
			world.OpMove:       {MaxCalls: cfg.Sim.MovesPerSecond, Window: time.Second},
		},
	}, res, grid, profiles, nil, logger)
	match.SetReporter(auditSvc)

	matches := world.NewRegistry(logger)
	matches.Add(match)
	defer matches.CloseAll()

	points := make([]world.SpawnPoint, 0, len(res.SpawnPoints))
	for _, p := range res.SpawnPoints {
		points = append(points, world.SpawnPoint{
			ArchetypeID:  p.ArchetypeID,
			Position:     sim.Vec3{X: p.X, Y: p.Y},
			Count:        p.Count,
			RespawnDelay: time.Duration(p.RespawnDelayMs) * time.Millisecond,
		})
	}
	director := world.NewDirector(match, points, logger)

	sched.AddTicker("match_tick", tick, func() {
		matches.TickAll(time.Now(), tick)
	})
	sched.AddTicker("director", time.Second, func() {
		director.Maintain(time.Now())
	})

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)

	// Fan deaths out to the match's sessions; entity kills also go to the
	// SSE kill feed.
	match.Bus.Subscribe(events.EntityDied, func(_ events.Kind, payload any) {
		ev, ok := payload.(events.EntityDiedEvent)
		if !ok {
			return
		}
		data, _ := json.Marshal(ev)
		sm.BroadcastToMatch(match.ID(), &player.Packet{Type: "entity_died", Payload: data})
		if ev.ArchetypeID == "" {
			return
		}
		if err := sseH.PublishKill(context.Background(), string(data)); err != nil {
			logger.Warn("kill feed publish failed", zap.Error(err))
		}
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	mh := apows.NewMatchHandlers(matches, sm, profiles, logger)
	mh.RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, profiles, auditSvc)
	rankH := apirest.NewRankingHandler(profiles, logger)
	adminH := apirest.NewAdminHandler(db, sm, matches, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		rankG := api.Group("/ranking")
		rankG.GET("/kills", rankH.TopKills)
		rankG.GET("/feed", rankH.KillFeed)

		api.GET("/profiles/:callsign", rankH.Profile)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPWhitelist))
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/matches", adminH.ListMatches)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.POST("/kick/:callsign", adminH.KickPlayer)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(c, cfg.Security, sm, mh, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	defer sm.CloseAllSessions()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
