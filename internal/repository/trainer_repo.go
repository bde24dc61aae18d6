package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/coachmatch/internal/models"
)

const trainerColumns = `user_id, full_name, specializations, certifications, experience_years, rating,
		created_at, updated_at`

type UpsertTrainerInput struct {
	UserID          string
	FullName        string
	Specializations []string
	Certifications  []string
	ExperienceYears int
	Rating          *float64
}

// TrainerRepository reads the trainer directory that the profile pages
// maintain. The core only needs names, specialisations and ratings.
type TrainerRepository struct {
	db DBTX
}

func NewTrainerRepository(db DBTX) *TrainerRepository {
	return &TrainerRepository{db: db}
}

func (r *TrainerRepository) GetByUserID(ctx context.Context, userID string) (*models.TrainerProfile, error) {
	query := `SELECT ` + trainerColumns + ` FROM trainers WHERE user_id = $1`
	profile, err := scanTrainer(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return profile, nil
}

func (r *TrainerRepository) ListAll(ctx context.Context) ([]models.TrainerProfile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+trainerColumns+` FROM trainers ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]models.TrainerProfile, 0)
	for rows.Next() {
		profile, err := scanTrainer(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *TrainerRepository) Upsert(ctx context.Context, input UpsertTrainerInput) (*models.TrainerProfile, error) {
	query := `
		INSERT INTO trainers (user_id, full_name, specializations, certifications, experience_years, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			specializations = EXCLUDED.specializations,
			certifications = EXCLUDED.certifications,
			experience_years = EXCLUDED.experience_years,
			rating = EXCLUDED.rating,
			updated_at = NOW()
		RETURNING ` + trainerColumns
	profile, err := scanTrainer(r.db.QueryRow(ctx, query,
		input.UserID,
		input.FullName,
		input.Specializations,
		input.Certifications,
		input.ExperienceYears,
		input.Rating,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return profile, nil
}

func scanTrainer(row pgx.Row) (*models.TrainerProfile, error) {
	var profile models.TrainerProfile
	if err := row.Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Specializations,
		&profile.Certifications,
		&profile.ExperienceYears,
		&profile.Rating,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}
