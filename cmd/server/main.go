package main

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"gopkg.in/natefinch/lumberjack.v2"

	"edupanel/internal/backend"
	"edupanel/internal/config"
	"edupanel/internal/database"
	"edupanel/internal/handlers"
	"edupanel/internal/repository"
	"edupanel/internal/security"
	"edupanel/internal/service"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	printStartUpBanner()

	startup := handlers.NewStartupStatus(handlers.StepDatabase, handlers.StepMigrations, handlers.StepTemplates, handlers.StepServices, handlers.StepServer)

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)
	startup.CompleteStep(handlers.StepDatabase)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")
	startup.CompleteStep(handlers.StepMigrations)

	// Load templates
	templates, err := loadTemplates(cfg.TemplatesPath)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	log.Println("Templates loaded successfully")
	startup.CompleteStep(handlers.StepTemplates)

	// Remote backends
	clientOpts := []backend.Option{
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithRateLimit(cfg.BackendRPS),
		backend.WithDebug(cfg.Debug),
	}
	client := backend.NewClient(cfg.BackendURL, clientOpts...)
	gameClient := backend.NewGameClient(cfg.GameBackendURL, cfg.AssetBaseURL, clientOpts...)

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(db)
	journalRepo := repository.NewJournalRepository(db)

	// Initialize services
	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Printf("Warning: email notifications disabled: %v", err)
		emailService, _ = service.NewEmailService(cfg.AWSRegion, "", cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	}
	tokenBox := security.NewTokenBox(cfg.SessionSecret)
	authService := service.NewAuthService(client, sessionRepo, tokenBox, emailService, cfg.SessionDuration, cfg.Debug)
	correctionService := service.NewCorrectionService(client, journalRepo, emailService)
	reportService := service.NewReportService(client)
	contentService := service.NewContentService(client)
	studentService := service.NewStudentService(client)
	gameService := service.NewGameService(gameClient, client)
	startup.CompleteStep(handlers.StepServices)

	// Initialize handlers
	limiter := security.NewRateLimiter(10, time.Minute)
	defer limiter.Stop()
	middleware := handlers.NewMiddleware(authService, security.NewCSRFGenerator(cfg.SessionSecret), limiter)
	authHandler := handlers.NewAuthHandler(authService, templates)
	contentHandler := handlers.NewContentHandler(contentService, middleware, templates, cfg.UploadMaxSize)
	correctionHandler := handlers.NewCorrectionHandler(correctionService, reportService, middleware, templates)
	studentHandler := handlers.NewStudentHandler(studentService, middleware, templates)
	gameHandler := handlers.NewGameHandler(gameService, middleware, templates)

	// Setup routes
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticFilesPath))))

	mux.HandleFunc("GET /healthz", startup.Healthz)

	// Public routes
	mux.HandleFunc("GET /", authHandler.Home)
	mux.HandleFunc("GET /login", authHandler.ShowLogin)
	mux.HandleFunc("POST /login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("GET /register", authHandler.ShowRegister)
	mux.HandleFunc("POST /register", middleware.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /logout", authHandler.Logout)

	// Shared content routes
	mux.HandleFunc("GET /dashboard", middleware.RequireAuth(contentHandler.Dashboard))
	mux.HandleFunc("GET /lesson-plans/{id}", middleware.RequireAuth(contentHandler.ViewLessonPlan))
	mux.HandleFunc("GET /lessons/{id}", middleware.RequireAuth(contentHandler.ViewLesson))
	mux.HandleFunc("GET /ranking", middleware.RequireAuth(gameHandler.ShowRanking))

	// Teacher content routes
	mux.HandleFunc("POST /teacher/lesson-plans", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.CreateLessonPlan)))
	mux.HandleFunc("POST /teacher/lesson-plans/{id}/update", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.UpdateLessonPlan)))
	mux.HandleFunc("POST /teacher/lesson-plans/{id}/delete", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.DeleteLessonPlan)))
	mux.HandleFunc("GET /teacher/lessons/new", middleware.RequireTeacher(contentHandler.ShowLessonEditor))
	mux.HandleFunc("POST /teacher/lessons", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveLesson)))
	mux.HandleFunc("GET /teacher/lessons/{id}/edit", middleware.RequireTeacher(contentHandler.ShowLessonEditor))
	mux.HandleFunc("POST /teacher/lessons/{id}/update", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveLesson)))
	mux.HandleFunc("POST /teacher/lessons/{id}/delete", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.DeleteLesson)))
	mux.HandleFunc("GET /teacher/exercises/new", middleware.RequireTeacher(contentHandler.ShowExerciseEditor))
	mux.HandleFunc("POST /teacher/exercises", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveExercise)))
	mux.HandleFunc("GET /teacher/exercises/{id}/edit", middleware.RequireTeacher(contentHandler.ShowExerciseEditor))
	mux.HandleFunc("POST /teacher/exercises/{id}/update", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveExercise)))
	mux.HandleFunc("POST /teacher/exercises/{id}/delete", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.DeleteExercise)))
	mux.HandleFunc("GET /teacher/lists/new", middleware.RequireTeacher(contentHandler.ShowListEditor))
	mux.HandleFunc("POST /teacher/lists", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveExerciseList)))
	mux.HandleFunc("GET /teacher/lists/{id}/edit", middleware.RequireTeacher(contentHandler.ShowListEditor))
	mux.HandleFunc("POST /teacher/lists/{id}/update", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.SaveExerciseList)))
	mux.HandleFunc("POST /teacher/lists/{id}/delete", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.DeleteExerciseList)))
	mux.HandleFunc("POST /teacher/upload", middleware.RequireTeacher(middleware.CSRFProtect(contentHandler.Upload)))

	// Correction routes
	mux.HandleFunc("GET /teacher/exercises/{id}/correction", middleware.RequireTeacher(correctionHandler.ShowExerciseCorrection))
	mux.HandleFunc("POST /teacher/exercises/{id}/correction", middleware.RequireTeacher(middleware.CSRFProtect(correctionHandler.SubmitExerciseCorrection)))
	mux.HandleFunc("GET /teacher/lists/{id}/correction", middleware.RequireTeacher(correctionHandler.ShowListCorrection))
	mux.HandleFunc("POST /teacher/lists/{id}/correction", middleware.RequireTeacher(middleware.CSRFProtect(correctionHandler.SubmitListCorrection)))
	mux.HandleFunc("GET /teacher/lists/{id}/gradebook", middleware.RequireTeacher(correctionHandler.DownloadGradebook))
	mux.HandleFunc("GET /teacher/journal/{id}", middleware.RequireTeacher(correctionHandler.ShowJournal))

	// Game administration
	mux.HandleFunc("GET /teacher/avatars", middleware.RequireTeacher(gameHandler.ShowAvatars))
	mux.HandleFunc("POST /teacher/avatars", middleware.RequireTeacher(middleware.CSRFProtect(gameHandler.SaveAvatar)))
	mux.HandleFunc("POST /teacher/avatars/{id}/update", middleware.RequireTeacher(middleware.CSRFProtect(gameHandler.SaveAvatar)))
	mux.HandleFunc("POST /teacher/avatars/{id}/delete", middleware.RequireTeacher(middleware.CSRFProtect(gameHandler.DeleteAvatar)))

	// Student routes
	mux.HandleFunc("GET /student/exercises/{id}", middleware.RequireAuth(studentHandler.ShowExercise))
	mux.HandleFunc("POST /student/exercises/{id}", middleware.RequireAuth(middleware.CSRFProtect(studentHandler.SubmitExercise)))
	mux.HandleFunc("GET /student/lists/{id}", middleware.RequireAuth(studentHandler.ShowList))
	mux.HandleFunc("POST /student/lists/{id}", middleware.RequireAuth(middleware.CSRFProtect(studentHandler.SubmitList)))
	mux.HandleFunc("GET /shop", middleware.RequireAuth(gameHandler.ShowShop))
	mux.HandleFunc("POST /shop/items/{id}/purchase", middleware.RequireAuth(middleware.CSRFProtect(gameHandler.Purchase)))

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go cleanupExpiredSessions(ctx, authService)

	startup.MarkReady()
	go func() {
		log.Printf("Server starting on http://localhost%s (backend: %s)", addr, cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

func printStartUpBanner() {
	banner := figure.NewFigure("EDUPANEL", "", true)
	banner.Print()

	fmt.Println("======================================================")
	fmt.Printf("EduPanel (v%s)\n\n", version)
}

// loadTemplates loads all template files
func loadTemplates(templatesPath string) (*template.Template, error) {
	baseTemplate := filepath.Join(templatesPath, "base.tmpl")

	patterns := []string{
		filepath.Join(templatesPath, "auth/*.tmpl"),
		filepath.Join(templatesPath, "content/*.tmpl"),
		filepath.Join(templatesPath, "correction/*.tmpl"),
		filepath.Join(templatesPath, "student/*.tmpl"),
		filepath.Join(templatesPath, "game/*.tmpl"),
		filepath.Join(templatesPath, "components/*.tmpl"),
	}

	var files []string
	files = append(files, baseTemplate)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	// Parse all templates with functions
	tmpl, err := template.New("").Funcs(handlers.TemplateFuncs()).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return tmpl, nil
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(ctx context.Context, authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authService.CleanupExpiredSessions(ctx)
			if err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
				continue
			}
			log.Printf("Expired sessions cleaned up (%d removed)", n)
		}
	}
}
