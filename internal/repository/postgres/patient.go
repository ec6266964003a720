package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.PatientStore = (*PatientRepository)(nil)

type PatientRepository struct {
	db *Connection
}

func NewPatientRepository(db *Connection) *PatientRepository {
	return &PatientRepository{
		db: db,
	}
}

const patientColumns = `id, account_id, full_name, birth_date, phone, address, created_at, updated_at`

func scanPatient(row pgx.Row) (model.Patient, error) {
	var p model.Patient
	err := row.Scan(&p.ID, &p.AccountID, &p.FullName, &p.BirthDate, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PatientRepository) GetByID(ctx context.Context, id int64) (model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	patient, err := scanPatient(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Patient{}, model.ErrNotFound
		}
		return model.Patient{}, fmt.Errorf("failed to get patient by id: %w", err)
	}

	return patient, nil
}

func (r *PatientRepository) GetByAccountID(ctx context.Context, accountID int64) (model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE account_id = $1`

	patient, err := scanPatient(r.db.q(ctx).QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Patient{}, model.ErrNotFound
		}
		return model.Patient{}, fmt.Errorf("failed to get patient by account id: %w", err)
	}

	return patient, nil
}

func (r *PatientRepository) Create(ctx context.Context, p model.Patient) (model.Patient, error) {
	query := `INSERT INTO patients (account_id, full_name, birth_date, phone, address)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + patientColumns

	saved, err := scanPatient(r.db.q(ctx).QueryRow(ctx, query,
		p.AccountID, p.FullName, p.BirthDate, p.Phone, p.Address,
	))
	if err != nil {
		return model.Patient{}, fmt.Errorf("failed to create patient: %w", err)
	}

	return saved, nil
}

func (r *PatientRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM patients WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
