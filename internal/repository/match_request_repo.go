package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/coachmatch/internal/models"
)

const matchRequestColumns = `id, member_id, trainer_id, training_goal, status, requested_at, updated_at,
		referral_trainer_id, referral_trainer_name`

type MatchRequestRepository struct {
	db TxStarter
}

func NewMatchRequestRepository(db TxStarter) *MatchRequestRepository {
	return &MatchRequestRepository{db: db}
}

func (r *MatchRequestRepository) GetByID(ctx context.Context, id string) (*models.MatchRequest, error) {
	query := `SELECT ` + matchRequestColumns + ` FROM match_requests WHERE id = $1`
	request, err := scanMatchRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return request, nil
}

func (r *MatchRequestRepository) ListByMember(
	ctx context.Context,
	memberID string,
	statuses []models.MatchStatus,
) ([]models.MatchRequest, error) {
	query := `
		SELECT ` + matchRequestColumns + `
		FROM match_requests
		WHERE member_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY requested_at DESC, id DESC
	`
	return r.list(ctx, query, memberID, matchStatusStrings(statuses))
}

func (r *MatchRequestRepository) ListByTrainer(
	ctx context.Context,
	trainerID string,
	statuses []models.MatchStatus,
) ([]models.MatchRequest, error) {
	query := `
		SELECT ` + matchRequestColumns + `
		FROM match_requests
		WHERE trainer_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY requested_at ASC, id ASC
	`
	return r.list(ctx, query, trainerID, matchStatusStrings(statuses))
}

// CreateIfNoActive inserts request unless the member already holds an active
// request. Concurrent callers for the same member are serialised on an
// advisory lock; the partial unique index on active requests backs it up.
func (r *MatchRequestRepository) CreateIfNoActive(
	ctx context.Context,
	request models.MatchRequest,
) (*models.MatchRequest, error) {
	var created *models.MatchRequest
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "match_request:"+request.MemberID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM match_requests
				WHERE member_id = $1 AND status = ANY($2)
			)
		`, request.MemberID, matchStatusStrings(models.ActiveMatchStatuses)).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO match_requests (id, member_id, trainer_id, training_goal, status, requested_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING `+matchRequestColumns,
			request.ID,
			request.MemberID,
			request.TrainerID,
			request.TrainingGoal,
			string(request.Status),
			request.RequestedAt,
		)
		var err error
		created, err = scanMatchRequest(row)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

func (r *MatchRequestRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.MatchStatus,
	nextStatus models.MatchStatus,
	referral *models.Referral,
) (*models.MatchRequest, error) {
	var referralID, referralName *string
	if referral != nil {
		referralID = &referral.AlternativeTrainerID
		referralName = &referral.AlternativeTrainerName
	}

	query := `
		UPDATE match_requests
		SET status = $3,
			referral_trainer_id = COALESCE($4, referral_trainer_id),
			referral_trainer_name = COALESCE($5, referral_trainer_name),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + matchRequestColumns
	request, err := scanMatchRequest(r.db.QueryRow(
		ctx,
		query,
		id,
		string(currentStatus),
		string(nextStatus),
		referralID,
		referralName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, mapError(err)
	}
	return request, nil
}

func (r *MatchRequestRepository) list(ctx context.Context, query string, args ...any) ([]models.MatchRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.MatchRequest, 0)
	for rows.Next() {
		request, err := scanMatchRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func scanMatchRequest(row pgx.Row) (*models.MatchRequest, error) {
	var (
		request      models.MatchRequest
		status       string
		referralID   *string
		referralName *string
	)
	if err := row.Scan(
		&request.ID,
		&request.MemberID,
		&request.TrainerID,
		&request.TrainingGoal,
		&status,
		&request.RequestedAt,
		&request.UpdatedAt,
		&referralID,
		&referralName,
	); err != nil {
		return nil, err
	}
	request.Status = models.MatchStatus(status)
	if referralID != nil {
		request.Referral = &models.Referral{AlternativeTrainerID: *referralID}
		if referralName != nil {
			request.Referral.AlternativeTrainerName = *referralName
		}
	}
	return &request, nil
}

func matchStatusStrings(statuses []models.MatchStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
