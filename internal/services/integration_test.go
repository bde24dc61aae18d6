package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/saeid-a/coachmatch/internal/keylock"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestPostgresSubmitEnforcesOneActiveRequest(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	memberID := "it-member-" + uuid.NewString()
	trainerIDs := []string{createTestTrainer(t, ctx, pool), createTestTrainer(t, ctx, pool)}
	t.Cleanup(func() { cleanupTestParticipants(t, ctx, pool, append(trainerIDs, memberID)...) })

	// Two services share nothing but the database, like two processes.
	services := []*MatchService{newIntegrationMatchService(pool), newIntegrationMatchService(pool)}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := services[i%2].Submit(ctx, memberID, trainerIDs[i%2], "weight loss")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateActiveRequest):
				duplicates++
			default:
				t.Errorf("Submit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || duplicates != 7 {
		t.Fatalf("expected 1 success and 7 duplicates, got %d and %d", successes, duplicates)
	}
}

func TestPostgresRejectWithReferralFlow(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationMatchService(pool)

	memberID := "it-member-" + uuid.NewString()
	trainerID := createTestTrainer(t, ctx, pool)
	alternativeID := createTestTrainer(t, ctx, pool)
	t.Cleanup(func() { cleanupTestParticipants(t, ctx, pool, memberID, trainerID, alternativeID) })

	submitted, err := service.Submit(ctx, memberID, trainerID, "strength")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rejected, err := service.RejectWithReferral(ctx, submitted.ID, trainerID, alternativeID)
	if err != nil {
		t.Fatalf("RejectWithReferral: %v", err)
	}
	if rejected.Status != models.MatchStatusRejected || rejected.Referral == nil ||
		rejected.Referral.AlternativeTrainerID != alternativeID {
		t.Fatalf("unexpected rejected request %+v", rejected.MatchRequest)
	}
	if len(rejected.Warnings) != 0 {
		t.Fatalf("expected notification to be written, got %v", rejected.Warnings)
	}
	if _, err := service.Accept(ctx, submitted.ID, trainerID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := service.Submit(ctx, memberID, alternativeID, "strength"); err != nil {
		t.Fatalf("Submit after rejection: %v", err)
	}
}

func TestPostgresBookRejectsOverlapAcrossServices(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	memberID := "it-member-" + uuid.NewString()
	trainerID := createTestTrainer(t, ctx, pool)
	t.Cleanup(func() { cleanupTestParticipants(t, ctx, pool, memberID, trainerID) })

	first := newIntegrationScheduleService(pool)
	second := newIntegrationScheduleService(pool)
	day := time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC)

	if _, err := first.Book(ctx, BookInput{
		TrainerID:  trainerID,
		MemberID:   memberID,
		CourseType: "strength",
		Date:       day,
		TimeStart:  models.NewTimeOfDay(12, 0),
		TimeEnd:    models.NewTimeOfDay(13, 0),
	}); err != nil {
		t.Fatalf("first Book: %v", err)
	}

	_, err := second.Book(ctx, BookInput{
		TrainerID:  trainerID,
		MemberID:   memberID,
		CourseType: "strength",
		Date:       day,
		TimeStart:  models.NewTimeOfDay(12, 30),
		TimeEnd:    models.NewTimeOfDay(13, 15),
	})
	if !errors.Is(err, ErrSchedulingConflict) {
		t.Fatalf("expected ErrSchedulingConflict, got %v", err)
	}

	views, err := second.ListForActor(ctx, trainerID, models.RoleTrainer, "upcoming")
	if err != nil {
		t.Fatalf("ListForActor: %v", err)
	}
	if len(views) != 1 || views[0].Date != "2030-04-01" || views[0].TimeStart.String() != "12:00" {
		t.Fatalf("expected the first booking only, got %+v", views)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationMatchService(pool *pgxpool.Pool) *MatchService {
	dispatcher := NewNotificationDispatcher(repository.NewNotificationRepository(pool), nil, 0)
	return NewMatchService(
		repository.NewMatchRequestRepository(pool),
		repository.NewTrainerRepository(pool),
		dispatcher,
		keylock.New(),
		0,
	)
}

func newIntegrationScheduleService(pool *pgxpool.Pool) *ScheduleService {
	dispatcher := NewNotificationDispatcher(repository.NewNotificationRepository(pool), nil, 0)
	service := NewScheduleService(repository.NewAppointmentRepository(pool), dispatcher, keylock.New(), 0)
	service.now = func() time.Time { return time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC) }
	return service
}

func createTestTrainer(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()

	rating := 4.6
	trainer, err := repository.NewTrainerRepository(pool).Upsert(ctx, repository.UpsertTrainerInput{
		UserID:          "it-trainer-" + uuid.NewString(),
		FullName:        "Test Trainer",
		Specializations: []string{"strength_training"},
		Certifications:  []string{"cert"},
		ExperienceYears: 4,
		Rating:          &rating,
	})
	if err != nil {
		t.Fatalf("Upsert trainer: %v", err)
	}
	return trainer.UserID
}

func cleanupTestParticipants(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ids ...string) {
	t.Helper()

	if len(ids) == 0 {
		return
	}

	if _, err := pool.Exec(ctx, "DELETE FROM notifications WHERE recipient_id = ANY($1)", ids); err != nil {
		t.Fatalf("cleanup notifications: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM appointments WHERE member_id = ANY($1) OR trainer_id = ANY($1)", ids); err != nil {
		t.Fatalf("cleanup appointments: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM match_requests WHERE member_id = ANY($1) OR trainer_id = ANY($1)", ids); err != nil {
		t.Fatalf("cleanup match requests: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM trainers WHERE user_id = ANY($1)", ids); err != nil {
		t.Fatalf("cleanup trainers: %v", err)
	}
}
