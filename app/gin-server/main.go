package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicerelay/config"
	"github.com/yoockh/voicerelay/internal/agent"
	"github.com/yoockh/voicerelay/internal/api/handlers"
	"github.com/yoockh/voicerelay/internal/api/middleware"
	"github.com/yoockh/voicerelay/internal/api/routes"
	"github.com/yoockh/voicerelay/internal/gateway"
	"github.com/yoockh/voicerelay/internal/logger"
	"github.com/yoockh/voicerelay/internal/providers/llm"
	"github.com/yoockh/voicerelay/internal/providers/stt"
	"github.com/yoockh/voicerelay/internal/providers/voiceagent"
	filerepo "github.com/yoockh/voicerelay/internal/repositories/file"
	mongorepo "github.com/yoockh/voicerelay/internal/repositories/mongo"
	pgrepo "github.com/yoockh/voicerelay/internal/repositories/postgres"
	"github.com/yoockh/voicerelay/internal/services"
	"github.com/yoockh/voicerelay/internal/storage"
	"github.com/yoockh/voicerelay/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// chat log: file is authoritative, stores are mirrors
	var mirrors []services.ChatLogMirror
	if cfg.MongoURI != "" {
		client, err := config.InitMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.WithError(err).Fatal("MongoDB init error")
		}
		cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			log.WithError(err).Warn("MongoDB index creation failed")
		}
		mirrors = append(mirrors, services.ChatLogMirror{Name: "mongo", Sink: mongorepo.NewChatLogRepo(db), Timeout: cfg.MirrorTimeout})
		log.Info("MongoDB connected")
	}
	if cfg.PostgresURI != "" {
		db, err := config.InitPostgres(cfg.PostgresURI)
		if err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		if err := pgrepo.Migrate(db); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
		mirrors = append(mirrors, services.ChatLogMirror{Name: "postgres", Sink: pgrepo.NewConversationRepo(db), Timeout: cfg.MirrorTimeout})
		log.Info("PostgreSQL connected")
	}
	chatLog := services.NewChatLogService(filerepo.NewChatLogRepo(cfg.ChatLogPath), log, mirrors...)
	cleanups = append(cleanups, func() { _ = chatLog.Close() })

	// artifacts: local dir, optionally mirrored to GCS
	artifactDir := storage.NewLocalDir(cfg.ArtifactDir)
	var uploads services.UploadQueue
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, "artifacts", false)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		cleanups = append(cleanups, func() { _ = gcs.Close() })
		pool := &workers.UploadPool{Uploader: gcs, NumWorkers: cfg.UploadWorkers, Logger: log}
		if err := pool.Start(context.Background()); err != nil {
			log.WithError(err).Fatal("upload pool error")
		}
		cleanups = append(cleanups, pool.Stop)
		uploads = pool
		log.WithField("bucket", cfg.GCSBucket).Info("artifact uploads enabled")
	}
	artifacts := services.NewArtifactService(artifactDir, uploads, log)

	hub := gateway.NewHub(log)
	var out agent.Broadcaster = hub
	if cfg.RedisAddr != "" {
		rdb, err := config.InitRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Fatal("Redis init error")
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		relay := &gateway.RedisRelay{Redis: rdb, Hub: hub, Logger: log}
		// subscribe before the session can publish its greeting
		if err := relay.Subscribe(ctx); err != nil {
			log.WithError(err).Fatal("Redis subscribe error")
		}
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("redis relay stopped")
			}
		}()
		out = relay
		log.Info("Redis connected")
	}

	dialer, closeDialer, err := buildDialer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("agent backend error")
	}
	cleanups = append(cleanups, closeDialer)

	session, err := agent.New(agent.Dependencies{
		Dialer:      dialer,
		Broadcaster: out,
		ChatLog:     chatLog,
		Artifacts:   artifacts,
		Logger:      log,
		Config: agent.Config{
			Settings:          voiceagent.NewSettings(cfg.Agent),
			KeepAliveInterval: cfg.KeepAliveInterval,
		},
	})
	if err != nil {
		log.WithError(err).Fatal("agent session error")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session:  handlers.NewSessionHandler(session, hub),
		Artifact: handlers.NewArtifactHandler(artifactDir),
		WS:       handlers.NewWSHandler(session, hub, log, cfg.WSWriteTimeout),
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	runErr := session.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	switch {
	case errors.Is(runErr, agent.ErrUpstreamClosed):
		log.Info("upstream closed, exiting")
	case errors.Is(runErr, context.Canceled):
		log.Info("shutting down")
	case runErr != nil:
		log.WithError(runErr).Error("agent session failed")
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		os.Exit(1)
	}
}

func buildDialer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (voiceagent.Dialer, func(), error) {
	switch cfg.Backend {
	case config.BackendGoogle:
		speech, err := stt.NewGoogleSpeech(ctx, voiceagent.SampleRate)
		if err != nil {
			return nil, nil, err
		}
		gemini, err := llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			_ = speech.Close()
			return nil, nil, err
		}
		log.WithField("model", cfg.GeminiModel).Info("using google cascade backend")
		return &voiceagent.CascadeDialer{
				STT:            speech,
				LLM:            gemini,
				UtteranceBytes: cfg.CascadeUtteranceBytes(),
			}, func() {
				_ = speech.Close()
				_ = gemini.Close()
			}, nil
	default:
		log.WithField("url", cfg.DeepgramAgentURL).Info("using deepgram agent backend")
		return &voiceagent.DeepgramDialer{APIKey: cfg.DeepgramAPIKey, URL: cfg.DeepgramAgentURL}, func() {}, nil
	}
}
