package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"exam-session-service/internal/app"
	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	filecatalog "exam-session-service/internal/infra/file"
	"exam-session-service/internal/infra/memory"
	pgrepo "exam-session-service/internal/infra/postgres"
	redisinfra "exam-session-service/internal/infra/redis"
	transport "exam-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	snapshotTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var exams app.ExamRepository
	if pool != nil {
		exams = pgrepo.NewExamRepository(pool)
	} else {
		seeded := memory.NewExamRepository()
		for _, exam := range sampleExams() {
			if err := seeded.UpsertExam(ctx, exam); err != nil {
				return err
			}
		}
		exams = seeded
	}

	if redisClient != nil {
		cacheTTL := config.TTLDuration(cfg.Exam.CacheTTL, 10*time.Minute)
		exams = redisinfra.NewExamCache(redisClient, exams, cacheTTL)
	}

	var snapshots app.SnapshotStore
	if redisClient != nil {
		snapshots = redisinfra.NewSnapshotStore(redisClient, snapshotTTL)
	} else {
		snapshots = memory.NewSnapshotStore()
	}

	var catalog app.CatalogLoader = memory.NewStaticCatalogLoader(sampleCatalog())
	if cfg.Catalog.Path != "" {
		catalog = filecatalog.NewCatalogLoader(cfg.Catalog.Path)
	}

	service := app.NewExamService(exams, snapshots, catalog)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleExams seeds the in-memory repository; production deployments load
// exams from Postgres instead.
func sampleExams() []domain.Exam {
	return []domain.Exam{
		{
			ID:        "exam-1",
			Title:     "Cardiology week 2",
			TimerMode: domain.TimerModeUntimed,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Stem: "A 62-year-old presents with crushing chest pain. First-line therapy?",
					Options: []domain.Option{
						{ID: "a", Text: "Aspirin"},
						{ID: "b", Text: "Warfarin"},
						{ID: "c", Text: "Amoxicillin"},
					},
					Answer:   "a",
					Lectures: []domain.LectureRef{{LectureID: "lec-acs", BlockID: "cardio", Week: 2}},
				},
				{
					ID:   "q2",
					Stem: "Which ECG change is most specific for STEMI?",
					Options: []domain.Option{
						{ID: "a", Text: "PR depression"},
						{ID: "b", Text: "ST elevation"},
					},
					Answer:   "b",
					Lectures: []domain.LectureRef{{LectureID: "lec-ecg", BlockID: "cardio", Week: 2}},
				},
			},
			Results:   []domain.Result{},
			UpdatedAt: time.Now(),
		},
		{
			ID:                 "exam-2",
			Title:              "Renal rapid fire",
			TimerMode:          domain.TimerModeTimed,
			SecondsPerQuestion: 60,
			Questions: []domain.Question{
				{
					ID:   "q3",
					Stem: "Most common cause of nephrotic syndrome in adults?",
					Options: []domain.Option{
						{ID: "a", Text: "Minimal change disease"},
						{ID: "b", Text: "FSGS"},
					},
					Answer:   "b",
					Lectures: []domain.LectureRef{{LectureID: "lec-glom", BlockID: "renal", Week: 1}},
				},
			},
			Results:   []domain.Result{},
			UpdatedAt: time.Now(),
		},
	}
}

func sampleCatalog() domain.Catalog {
	return domain.Catalog{
		Blocks: []domain.Block{
			{ID: "cardio", Title: "Cardiology"},
			{ID: "renal", Title: "Renal"},
		},
		LectureLists: map[string][]domain.Lecture{
			"cardio": {
				{ID: "lec-acs", Title: "Acute coronary syndromes", Week: 2},
				{ID: "lec-ecg", Title: "ECG interpretation", Week: 2},
			},
			"renal": {
				{ID: "lec-glom", Title: "Glomerular disease", Week: 1},
			},
		},
	}
}
