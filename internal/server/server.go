package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/event"
	"github.com/quizairium/quizairium/internal/game"
	"github.com/quizairium/quizairium/internal/leaderboard"
	"github.com/quizairium/quizairium/internal/ledger"
	"github.com/quizairium/quizairium/internal/provider"
	"github.com/quizairium/quizairium/internal/registry"
	"github.com/quizairium/quizairium/internal/store/memory"
	storepostgres "github.com/quizairium/quizairium/internal/store/postgres"
	storeredis "github.com/quizairium/quizairium/internal/store/redis"
	"github.com/quizairium/quizairium/internal/telemetry"
	"github.com/quizairium/quizairium/internal/transport/telegram"
	"github.com/quizairium/quizairium/internal/transport/ws"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	// Redis backs the ledger, snapshots and the leaderboard. With no addrs
	// configured the server falls back to in-memory stores and games do not
	// survive restarts.
	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	// Postgres backs the finished-game archive. Optional.
	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	// Telegram is optional; without a token only the ws transport runs.
	Telegram struct {
		Token string
	}

	// OpenAI is optional; without a key questions come from the built-in
	// fallback set.
	OpenAI struct {
		Key   string
		Model string
	}

	Game struct {
		Rounds               int
		RoundSeconds         int
		Topic                string
		Difficulty           string
		Points               []int
		ExpectedParticipants int
	}
}

func (c Config) gameDefaults() domain.GameConfig {
	return domain.GameConfig{
		Rounds:               c.Game.Rounds,
		RoundTime:            time.Duration(c.Game.RoundSeconds) * time.Second,
		Topic:                c.Game.Topic,
		Difficulty:           c.Game.Difficulty,
		PointsTable:          c.Game.Points,
		ExpectedParticipants: c.Game.ExpectedParticipants,
	}.Normalize()
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		registry    *registry.Registry
		leaderboard *leaderboard.Service
		archive     *storepostgres.Archive
	}

	transport struct {
		notifier *notifierMux
		telegram *telegram.Bot
		hub      *ws.Hub
	}

	http *http.Server

	cancelRun context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	if err := s.initTransports(); err != nil {
		return nil, fmt.Errorf("server: init transports: %w", err)
	}
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	if len(s.c.Redis.Addrs) == 0 {
		slog.Warn("server: redis not configured, using in-memory stores")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	if s.c.Postgres.Addr == "" {
		slog.Warn("server: postgres not configured, game archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	var p provider.Provider
	if s.c.OpenAI.Key != "" {
		p = provider.NewOpenAIProvider(s.c.OpenAI.Key, s.c.OpenAI.Model)
	} else {
		slog.Warn("server: openai not configured, using built-in questions")
		p = provider.NewStaticProvider(provider.FallbackQuestions()...)
	}

	var (
		led   ledger.Ledger
		snaps game.SnapshotStore
	)
	if s.infra.redis != nil {
		led = storeredis.NewLedger(s.infra.redis, s.c.Redis.Prefix, 24*time.Hour)
		snaps = storeredis.NewSnapshotStore(s.infra.redis, s.c.Redis.Prefix)
	} else {
		led = memory.NewLedger()
		snaps = memory.NewSnapshotStore()
	}

	s.transport.notifier = newNotifierMux()

	s.service.registry = registry.New(game.Deps{
		Fetcher:   provider.NewAdapter(p),
		Ledger:    led,
		Snapshots: snaps,
		Bus:       s.eb,
		Notifier:  s.transport.notifier,
	})

	if s.infra.redis != nil {
		s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis,
			Prefix:   s.c.Redis.Prefix,
		})
	}

	if s.infra.postgres != nil {
		s.service.archive = storepostgres.NewArchive(s.infra.postgres)
		s.eb.Subscribe(domain.EventNameGameFinished, func(ctx context.Context, e event.Event) error {
			return s.service.archive.SaveGame(ctx, e.(domain.EventGameFinished).Game)
		})
	}
}

func (s *Server) initTransports() error {
	s.transport.hub = ws.NewHub()
	s.transport.notifier.register(ws.ChatPrefix, s.transport.hub)

	if s.c.Telegram.Token == "" {
		slog.Warn("server: telegram not configured, transport disabled")
		return nil
	}

	bot, err := telegram.New(telegram.Config{
		Token:       s.c.Telegram.Token,
		Defaults:    s.c.gameDefaults(),
		Registry:    s.service.registry,
		Leaderboard: s.service.leaderboard,
		Archive:     s.service.archive,
	})
	if err != nil {
		return err
	}

	s.transport.telegram = bot
	s.transport.notifier.register(telegram.ChatPrefix, bot)
	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "active_games": s.service.registry.Active()})
	})

	wsHandler := ws.NewHandler(s.transport.hub, s.service.registry, s.c.gameDefaults())
	e.GET("/ws", gin.WrapF(wsHandler.ServeWS))

	v1 := e.Group("/v1")
	v1.GET("/chats/:chat/leaderboard", s.handleGetLeaderboard)
	v1.GET("/chats/:chat/players/:player/stats", s.handleGetPlayerStats)
	v1.GET("/chats/:chat/top", s.handleGetTopPlayers)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start runs the transports until Shutdown. The registry resumes persisted
// games before any listener accepts traffic so no command races recovery.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel

	if err := s.service.registry.Resume(ctx); err != nil {
		slog.ErrorContext(ctx, "server: resume games failed", "error", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.transport.telegram != nil {
		eg.Go(func() error {
			slog.InfoContext(ctx, "server: telegram transport polling")
			if err := s.transport.telegram.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.cancelRun != nil {
		s.cancelRun()
	}

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Sessions snapshot on every transition, so stopping here loses nothing;
	// games resume on the next boot.
	s.service.registry.Close()

	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
