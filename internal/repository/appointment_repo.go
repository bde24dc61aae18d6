package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/coachmatch/internal/models"
)

const appointmentColumns = `id, member_id, trainer_id, course_type, date, start_minute, end_minute,
		duration_min, status, notes, created_at, updated_at`

type AppointmentRepository struct {
	db TxStarter
}

func NewAppointmentRepository(db TxStarter) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return appointment, nil
}

func (r *AppointmentRepository) ListByTrainerAndDate(
	ctx context.Context,
	trainerID string,
	date time.Time,
	statuses []models.AppointmentStatus,
) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE trainer_id = $1 AND date = $2 AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY start_minute ASC, id ASC
	`
	return r.list(ctx, query, trainerID, calendarDay(date), appointmentStatusStrings(statuses))
}

func (r *AppointmentRepository) ListByMemberAndTrainer(
	ctx context.Context,
	memberID string,
	trainerID string,
) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE member_id = $1 AND trainer_id = $2
		ORDER BY date ASC, start_minute ASC, id ASC
	`
	return r.list(ctx, query, memberID, trainerID)
}

// ListForParticipant returns every appointment the actor takes part in,
// either as member or as trainer depending on role.
func (r *AppointmentRepository) ListForParticipant(
	ctx context.Context,
	actorID string,
	role string,
) ([]models.Appointment, error) {
	actorColumn := "member_id"
	if role == models.RoleTrainer {
		actorColumn = "trainer_id"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s = $1
		ORDER BY date ASC, start_minute ASC, id ASC
	`, appointmentColumns, actorColumn)
	return r.list(ctx, query, actorID)
}

// CreateIfNoOverlap inserts appointment unless another scheduled appointment
// of the same trainer on the same day overlaps [start, end). Bookings for one
// (trainer, date) pair are serialised on an advisory lock so the check and the
// insert cannot interleave with another booking.
func (r *AppointmentRepository) CreateIfNoOverlap(
	ctx context.Context,
	appointment models.Appointment,
) (*models.Appointment, error) {
	day := calendarDay(appointment.Date)

	var created *models.Appointment
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		key := fmt.Sprintf("appointment:%s:%s", appointment.TrainerID, day.Format(models.DateLayout))
		if err := lockKey(ctx, tx, key); err != nil {
			return err
		}

		var overlaps bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE trainer_id = $1
				  AND date = $2
				  AND status = 'scheduled'
				  AND start_minute < $4
				  AND $3 < end_minute
			)
		`, appointment.TrainerID, day, appointment.TimeStart.Minutes(), appointment.TimeEnd.Minutes()).Scan(&overlaps); err != nil {
			return err
		}
		if overlaps {
			return ErrConflict
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, member_id, trainer_id, course_type, date, start_minute, end_minute,
				duration_min, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING `+appointmentColumns,
			appointment.ID,
			appointment.MemberID,
			appointment.TrainerID,
			appointment.CourseType,
			day,
			appointment.TimeStart.Minutes(),
			appointment.TimeEnd.Minutes(),
			appointment.DurationMinutes,
			string(appointment.Status),
			appointment.Notes,
			appointment.CreatedAt,
		)
		var err error
		created, err = scanAppointment(row)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

func (r *AppointmentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.AppointmentStatus,
	nextStatus models.AppointmentStatus,
) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns
	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, id, string(currentStatus), string(nextStatus)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, mapError(err)
	}
	return appointment, nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]models.Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]models.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var (
		appointment models.Appointment
		startMinute int
		endMinute   int
		status      string
	)
	if err := row.Scan(
		&appointment.ID,
		&appointment.MemberID,
		&appointment.TrainerID,
		&appointment.CourseType,
		&appointment.Date,
		&startMinute,
		&endMinute,
		&appointment.DurationMinutes,
		&status,
		&appointment.Notes,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appointment.TimeStart = models.TimeOfDay(startMinute)
	appointment.TimeEnd = models.TimeOfDay(endMinute)
	appointment.Status = models.AppointmentStatus(status)
	return &appointment, nil
}

// calendarDay drops the clock so DATE columns compare by day only.
func calendarDay(date time.Time) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func appointmentStatusStrings(statuses []models.AppointmentStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
