package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/availability"
	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/config"
	"github.com/hackgods/practice-booking/internal/db"
)

type seedOptions struct {
	practitioners int
	clients       int
	days          int
	pendingShare  float64
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake practitioners, clients and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().IntVar(&opts.practitioners, "practitioners", 50, "Practitioners to create")
	cmd.Flags().IntVar(&opts.clients, "clients", 2000, "Clients to create")
	cmd.Flags().IntVar(&opts.days, "days", 14, "Days of availability to publish, starting tomorrow")
	cmd.Flags().Float64Var(&opts.pendingShare, "pending-share", 0.1, "Share of practitioners left with a pending license request")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts seedOptions) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	logger.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	ctx = context.Background()
	if _, err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	practitioners, err := seedPractitioners(ctx, pool, opts.practitioners, opts.pendingShare)
	if err != nil {
		return fmt.Errorf("seed practitioners: %w", err)
	}
	logger.Info().Int("count", len(practitioners)).Msg("practitioners seeded")

	clients, err := seedClients(ctx, pool, opts.clients, logger)
	if err != nil {
		return fmt.Errorf("seed clients: %w", err)
	}

	if err := seedAvailability(ctx, availability.NewPgRepository(pool), practitioners, opts.days); err != nil {
		return fmt.Errorf("seed availability: %w", err)
	}
	logger.Info().Int("days", opts.days).Msg("availability seeded")

	// Sample credentials for manual testing.
	tokens := auth.NewTokens(cfg.JWTSecret, 7*24*time.Hour)
	samples := []auth.Principal{
		{UserID: uuid.New(), Email: "admin@example.com", Role: auth.RoleAdmin},
		{UserID: practitioners[0].id, Email: practitioners[0].email, Role: auth.RolePractitioner},
		{UserID: clients[0].id, Email: clients[0].email, Role: auth.RoleClient},
	}
	for _, p := range samples {
		tok, err := tokens.Issue(p)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %-40s %s\n", p.Role, p.Email, tok)
	}

	logger.Info().Msg("seed complete")
	return nil
}

type person struct {
	id    uuid.UUID
	email string
}

// uniqueEmail tags a fake address with part of id so reruns never collide.
func uniqueEmail(id uuid.UUID) string {
	local, domain, _ := strings.Cut(strings.ToLower(gofakeit.Email()), "@")
	return fmt.Sprintf("%s.%s@%s", local, id.String()[:8], domain)
}

func fakeLicenseNumber() string {
	return gofakeit.LetterN(2) + "-" + gofakeit.DigitN(6)
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int, pendingShare float64) ([]person, error) {
	if count <= 0 {
		return nil, fmt.Errorf("at least one practitioner is required")
	}
	kinds := []string{"doctor", "therapist"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]person, 0, count)
	for i := 0; i < count; i++ {
		p := person{id: uuid.New()}
		p.email = uniqueEmail(p.id)
		number := strings.ToUpper(fakeLicenseNumber())
		pending := i > 0 && gofakeit.Float64Range(0, 1) < pendingShare

		status := "approved"
		var licenseNumber *string
		if pending {
			status = "pending"
		} else {
			licenseNumber = &number
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, email, name, kind, license_number, listed)
			VALUES ($1, $2, $3, $4, $5, true)
		`, p.id, p.email, gofakeit.Name(), kinds[gofakeit.Number(0, len(kinds)-1)], licenseNumber); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO license_requests (id, practitioner_email, license_number, status)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), p.email, number, status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) ([]person, error) {
	if count <= 0 {
		return nil, fmt.Errorf("at least one client is required")
	}
	const batchSize = 500

	out := make([]person, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			c := person{id: uuid.New()}
			c.email = uniqueEmail(c.id)
			batch.Queue(`INSERT INTO clients (id, email, name) VALUES ($1, $2, $3)`, c.id, c.email, gofakeit.Name())
			out = append(out, c)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("clients seeded")
	}
	return out, nil
}

func seedAvailability(ctx context.Context, repo *availability.PgRepository, practitioners []person, days int) error {
	templates := [][]civil.Range{
		{{Start: civil.MustClock("09:00"), End: civil.MustClock("12:00")}, {Start: civil.MustClock("13:00"), End: civil.MustClock("17:00")}},
		{{Start: civil.MustClock("08:00"), End: civil.MustClock("14:00")}},
		{{Start: civil.MustClock("12:00"), End: civil.MustClock("20:00")}},
	}
	tomorrow := civil.Today(time.Now().AddDate(0, 0, 1))

	for _, p := range practitioners {
		ranges := templates[gofakeit.Number(0, len(templates)-1)]
		list := make([]availability.Day, 0, days)
		for d := 0; d < days; d++ {
			date := civil.DateOf(tomorrow.Midnight(time.Local).AddDate(0, 0, d))
			list = append(list, availability.Day{Date: date, Ranges: ranges})
		}
		if err := repo.UpsertMany(ctx, p.id, list); err != nil {
			return err
		}
	}
	return nil
}
