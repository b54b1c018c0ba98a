package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/importer"
	pgstore "exam-session-service/internal/infra/postgres"
	redisstore "exam-session-service/internal/infra/redis"
	"exam-session-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ExamWriter persists imported exams.
type ExamWriter interface {
	UpsertExam(ctx context.Context, exam domain.Exam) error
}

type importFlags struct {
	examID    string
	title     string
	timeLimit int
	dryRun    bool
}

// NewImportCmd loads an exam from an .xlsx workbook.
func NewImportCmd(configPath *string) *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import an exam from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
			opts := importer.Options{ExamID: flags.examID, Title: flags.title, TimeLimitMinutes: flags.timeLimit}

			if flags.dryRun {
				return importWorkbook(cmd.Context(), args[0], opts, nil, cmd.OutOrStdout(), log)
			}
			if cfg.Postgres.URL == "" {
				return errPostgresNotConfigured
			}
			if err := runMigrations(cmd.Context(), cfg, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			var writer ExamWriter = pgstore.NewExamStore(pool)
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				cache := redisstore.NewExamRepository(client, nil, config.TTLDuration(cfg.Exam.TTL, 10*time.Minute), log)
				writer = invalidatingWriter{next: writer, cache: cache}
			}
			return importWorkbook(cmd.Context(), args[0], opts, writer, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVar(&flags.examID, "exam-id", "", "exam id (generated when empty)")
	cmd.Flags().StringVar(&flags.title, "title", "", "exam title (defaults to the file name)")
	cmd.Flags().IntVar(&flags.timeLimit, "time-limit", importer.DefaultTimeLimitMinutes, "time limit in minutes")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the parsed exam instead of storing it")
	return cmd
}

// importWorkbook parses path and hands the exam to writer. A nil writer
// prints the exam as JSON to out.
func importWorkbook(ctx context.Context, path string, opts importer.Options, writer ExamWriter, out io.Writer, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := importer.ParseWorkbook(f, path, opts)
	for _, skipped := range report.Skipped {
		log.Warn().Int("row", skipped.Row).Str("reason", skipped.Reason).Msg("row skipped")
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	log.Info().
		Str("exam_id", report.Exam.ID).
		Int("rows", report.Rows).
		Int("imported", len(report.Exam.Questions)).
		Int("skipped", len(report.Skipped)).
		Msg("workbook parsed")

	if writer == nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Exam)
	}
	if err := writer.UpsertExam(ctx, report.Exam); err != nil {
		return err
	}
	log.Info().Str("exam_id", report.Exam.ID).Msg("exam stored")
	return nil
}

type invalidatingWriter struct {
	next  ExamWriter
	cache *redisstore.ExamRepository
}

func (w invalidatingWriter) UpsertExam(ctx context.Context, exam domain.Exam) error {
	if err := w.next.UpsertExam(ctx, exam); err != nil {
		return err
	}
	return w.cache.Invalidate(ctx, exam.ID)
}
