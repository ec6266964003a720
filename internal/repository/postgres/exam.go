package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.ExamStore = (*ExamRepository)(nil)

type ExamRepository struct {
	db *Connection
}

func NewExamRepository(db *Connection) *ExamRepository {
	return &ExamRepository{
		db: db,
	}
}

const examColumns = `id, patient_id, clinician_id, consultation_id, date, kind, observations, attachment_key, created_at, updated_at`

func scanExam(row pgx.Row) (model.Exam, error) {
	var e model.Exam
	err := row.Scan(
		&e.ID, &e.PatientID, &e.ClinicianID, &e.ConsultationID, &e.Date, &e.Kind,
		&e.Observations, &e.AttachmentKey, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *ExamRepository) Create(ctx context.Context, e model.Exam) (model.Exam, error) {
	query := `INSERT INTO exams (patient_id, clinician_id, consultation_id, date, kind, observations, attachment_key)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + examColumns

	saved, err := scanExam(r.db.q(ctx).QueryRow(ctx, query,
		e.PatientID, e.ClinicianID, e.ConsultationID, e.Date, e.Kind, e.Observations, e.AttachmentKey,
	))
	if err != nil {
		return model.Exam{}, fmt.Errorf("failed to create exam: %w", err)
	}

	return saved, nil
}

func (r *ExamRepository) GetByID(ctx context.Context, id int64) (model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`

	e, err := scanExam(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Exam{}, model.ErrNotFound
		}
		return model.Exam{}, fmt.Errorf("failed to get exam by id: %w", err)
	}

	return e, nil
}

func (r *ExamRepository) GetByPatient(ctx context.Context, patientID int64) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE patient_id = $1 ORDER BY date DESC`

	rows, err := r.db.q(ctx).Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exams by patient: %w", err)
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exams, nil
}

func (r *ExamRepository) GetByConsultation(ctx context.Context, consultationID int64) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE consultation_id = $1 ORDER BY date DESC`

	rows, err := r.db.q(ctx).Query(ctx, query, consultationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exams by consultation: %w", err)
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exams, nil
}

func (r *ExamRepository) CountByConsultation(ctx context.Context, consultationID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM exams WHERE consultation_id = $1`

	var count int64
	if err := r.db.q(ctx).QueryRow(ctx, query, consultationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count exams by consultation: %w", err)
	}

	return count, nil
}

func (r *ExamRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM exams WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ExamRepository) DeleteByConsultation(ctx context.Context, consultationID int64) (int64, error) {
	query := `DELETE FROM exams WHERE consultation_id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, consultationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exams by consultation: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *ExamRepository) DeleteByPatient(ctx context.Context, patientID int64) (int64, error) {
	query := `DELETE FROM exams WHERE patient_id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exams by patient: %w", err)
	}
	return cmd.RowsAffected(), nil
}
