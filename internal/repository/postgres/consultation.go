package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.ConsultationStore = (*ConsultationRepository)(nil)

type ConsultationRepository struct {
	db *Connection
}

func NewConsultationRepository(db *Connection) *ConsultationRepository {
	return &ConsultationRepository{
		db: db,
	}
}

const consultationColumns = `id, patient_id, clinician_id, date, kind, motive, symptoms, diagnosis, treatment, notes, created_at, updated_at`

func scanConsultation(row pgx.Row) (model.Consultation, error) {
	var c model.Consultation
	err := row.Scan(
		&c.ID, &c.PatientID, &c.ClinicianID, &c.Date, &c.Kind,
		&c.Motive, &c.Symptoms, &c.Diagnosis, &c.Treatment, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *ConsultationRepository) Create(ctx context.Context, c model.Consultation) (model.Consultation, error) {
	query := `INSERT INTO consultations (patient_id, clinician_id, date, kind, motive, symptoms, diagnosis, treatment, notes)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + consultationColumns

	saved, err := scanConsultation(r.db.q(ctx).QueryRow(ctx, query,
		c.PatientID, c.ClinicianID, c.Date, c.Kind,
		c.Motive, c.Symptoms, c.Diagnosis, c.Treatment, c.Notes,
	))
	if err != nil {
		return model.Consultation{}, fmt.Errorf("failed to create consultation: %w", err)
	}

	return saved, nil
}

func (r *ConsultationRepository) GetByID(ctx context.Context, id int64) (model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	c, err := scanConsultation(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Consultation{}, model.ErrNotFound
		}
		return model.Consultation{}, fmt.Errorf("failed to get consultation by id: %w", err)
	}

	return c, nil
}

func (r *ConsultationRepository) GetByPatient(ctx context.Context, patientID int64) ([]model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE patient_id = $1 ORDER BY date DESC`

	rows, err := r.db.q(ctx).Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get consultations by patient: %w", err)
	}
	defer rows.Close()

	var consultations []model.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		consultations = append(consultations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return consultations, nil
}

func (r *ConsultationRepository) Update(ctx context.Context, c model.Consultation) (model.Consultation, error) {
	query := `UPDATE consultations
			  SET date = $2, kind = $3, motive = $4, symptoms = $5, diagnosis = $6, treatment = $7, notes = $8, updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + consultationColumns

	saved, err := scanConsultation(r.db.q(ctx).QueryRow(ctx, query,
		c.ID, c.Date, c.Kind, c.Motive, c.Symptoms, c.Diagnosis, c.Treatment, c.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Consultation{}, model.ErrNotFound
		}
		return model.Consultation{}, fmt.Errorf("failed to update consultation: %w", err)
	}

	return saved, nil
}

func (r *ConsultationRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM consultations WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete consultation: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ConsultationRepository) DeleteByPatient(ctx context.Context, patientID int64) (int64, error) {
	query := `DELETE FROM consultations WHERE patient_id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete consultations by patient: %w", err)
	}
	return cmd.RowsAffected(), nil
}
