package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/classledger/classledger-backend/internal/payroll/events"
	"github.com/classledger/classledger-backend/internal/payroll/handler"
	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/internal/payroll/service"
	"github.com/classledger/classledger-backend/pkg/config"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/httputil"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/messaging"
)

func main() {
	cfg, err := config.Load("payroll-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("payroll-service", cfg.Server.Environment)
	log.Info().Msg("starting Payroll Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewPayrollEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	structureRepo := repository.NewStructureRepository(db)
	salaryRepo := repository.NewSalaryRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	structureService := service.NewStructureService(db, structureRepo, attendanceRepo, publisher, log)
	salaryService := service.NewSalaryService(db, salaryRepo, structureRepo, attendanceRepo, publisher, log)

	structureHandler := handler.NewStructureHandler(structureService, log)
	salaryHandler := handler.NewSalaryHandler(salaryService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-School-ID", "X-Actor-ID", "X-Actor-Role"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "payroll-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/payroll", func(r chi.Router) {
		r.Route("/teachers/{teacherId}/structure", func(r chi.Router) {
			r.Post("/", structureHandler.Set)
			r.Get("/", structureHandler.GetActive)
			r.Get("/history", structureHandler.History)
		})

		r.Route("/salaries", func(r chi.Router) {
			r.Get("/", salaryHandler.List)
			r.Post("/generate", salaryHandler.Generate)
			r.Get("/{id}", salaryHandler.Get)
			r.Post("/{id}/approve", salaryHandler.Approve)
			r.Post("/{id}/reject", salaryHandler.Reject)
			r.Post("/{id}/pay", salaryHandler.MarkPaid)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
