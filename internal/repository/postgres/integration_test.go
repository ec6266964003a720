//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ovialab/cliniguard-server/internal/model"
	repo "github.com/ovialab/cliniguard-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "cliniguard_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/cliniguard_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createAccount(t *testing.T, ctx context.Context, ar *repo.AccountRepository, email string) model.Account {
	t.Helper()
	account, err := ar.Create(ctx, model.Account{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		Role:         model.RolePatient,
		Active:       true,
	})
	require.NoError(t, err)
	return account
}

func TestRepositories_CRUD(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	t.Run("account_repository", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		account := createAccount(t, ctx, ar, "account@clinic.test")

		byEmail, err := ar.GetByEmail(ctx, "ACCOUNT@clinic.test")
		require.NoError(t, err)
		require.Equal(t, account.ID, byEmail.ID)

		byID, err := ar.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, account.Email, byID.Email)

		_, err = ar.GetByEmail(ctx, "nobody@clinic.test")
		require.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, ar.Delete(ctx, account.ID))

		_, err = ar.GetByID(ctx, account.ID)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("failed_attempts_lockout", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		account := createAccount(t, ctx, ar, "lockout@clinic.test")

		for i := 1; i < model.LockoutThreshold; i++ {
			attempts, locked, err := ar.IncrementFailedAttempts(ctx, account.ID, model.LockoutThreshold)
			require.NoError(t, err)
			require.Equal(t, i, attempts)
			require.False(t, locked)
		}

		attempts, locked, err := ar.IncrementFailedAttempts(ctx, account.ID, model.LockoutThreshold)
		require.NoError(t, err)
		require.Equal(t, model.LockoutThreshold, attempts)
		require.True(t, locked)

		got, err := ar.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.False(t, got.Active)

		require.NoError(t, ar.Unlock(ctx, account.ID))

		got, err = ar.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.True(t, got.Active)
		require.Zero(t, got.FailedAttempts)
	})

	t.Run("otp_roundtrip", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		account := createAccount(t, ctx, ar, "otp@clinic.test")

		_, _, err := ar.IncrementFailedAttempts(ctx, account.ID, model.LockoutThreshold)
		require.NoError(t, err)

		expiry := time.Now().Add(model.OTPTTL).UTC()
		require.NoError(t, ar.SetOTP(ctx, account.ID, "123456", expiry))

		got, err := ar.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, got.PendingOTPCode)
		require.Equal(t, "123456", *got.PendingOTPCode)
		require.NotNil(t, got.OTPExpiry)
		// SetOTP also resets the counter.
		require.Zero(t, got.FailedAttempts)

		require.NoError(t, ar.ClearOTP(ctx, account.ID))

		got, err = ar.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.Nil(t, got.PendingOTPCode)
		require.Nil(t, got.OTPExpiry)
	})

	t.Run("clinical_repositories", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		pr := repo.NewPatientRepository(conn)
		cr := repo.NewConsultationRepository(conn)
		er := repo.NewExamRepository(conn)

		account := createAccount(t, ctx, ar, "patient@clinic.test")
		patient, err := pr.Create(ctx, model.Patient{AccountID: account.ID, FullName: "Ana Pérez"})
		require.NoError(t, err)

		consultation, err := cr.Create(ctx, model.Consultation{
			PatientID:   patient.ID,
			ClinicianID: account.ID,
			Date:        time.Now().UTC(),
			Kind:        "general",
			Motive:      "aa:bb",
		})
		require.NoError(t, err)

		exam, err := er.Create(ctx, model.Exam{
			PatientID:      patient.ID,
			ClinicianID:    account.ID,
			ConsultationID: &consultation.ID,
			Date:           time.Now().UTC(),
			Kind:           "radiografía",
			Observations:   "cc:dd",
		})
		require.NoError(t, err)

		count, err := er.CountByConsultation(ctx, consultation.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)

		list, err := cr.GetByPatient(ctx, patient.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		removed, err := er.DeleteByConsultation(ctx, consultation.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), removed)

		_, err = er.GetByID(ctx, exam.ID)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("audit_repository_join", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		audr := repo.NewAuditRepository(conn)

		account := createAccount(t, ctx, ar, "auditor@clinic.test")

		role := model.RolePatient
		require.NoError(t, audr.Insert(ctx, model.AuditEvent{
			ID:            uuid.New(),
			OriginService: "auth-service",
			Severity:      model.SeverityWarning,
			AccountID:     &account.ID,
			AccountRole:   &role,
			SourceAddress: "10.0.0.1",
			Action:        model.ActionLoginFailed,
			Details:       []byte(`{"intento":1}`),
		}))
		require.NoError(t, audr.Insert(ctx, model.AuditEvent{
			ID:            uuid.New(),
			OriginService: "auth-service",
			Severity:      model.SeverityInfo,
			SourceAddress: model.SourceUnknown,
			Action:        model.ActionLoginSuccess,
			Details:       []byte(`{}`),
		}))

		events, err := audr.ListRecent(ctx, 100)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(events), 2)
		// Newest first.
		require.False(t, events[0].Timestamp.Before(events[1].Timestamp))

		var joined bool
		for _, e := range events {
			if e.AccountID != nil && *e.AccountID == account.ID {
				require.Equal(t, account.Email, e.AccountEmail)
				joined = true
			}
		}
		require.True(t, joined)
	})

	t.Run("tx_manager_rollback", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		pr := repo.NewPatientRepository(conn)
		txm := repo.NewTxManager(conn)

		account := createAccount(t, ctx, ar, "rollback@clinic.test")
		patient, err := pr.Create(ctx, model.Patient{AccountID: account.ID, FullName: "Luis Gómez"})
		require.NoError(t, err)

		boom := errors.New("boom")
		err = txm.WithinTx(ctx, func(ctx context.Context) error {
			if err := pr.Delete(ctx, patient.ID); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		// Rolled back, the row is still there.
		got, err := pr.GetByID(ctx, patient.ID)
		require.NoError(t, err)
		require.Equal(t, patient.ID, got.ID)

		err = txm.WithinTx(ctx, func(ctx context.Context) error {
			return pr.Delete(ctx, patient.ID)
		})
		require.NoError(t, err)

		_, err = pr.GetByID(ctx, patient.ID)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("message_repository", func(t *testing.T) {
		ar := repo.NewAccountRepository(conn)
		mr := repo.NewMessageRepository(conn)

		sender := createAccount(t, ctx, ar, "sender@clinic.test")
		recipient := createAccount(t, ctx, ar, "recipient@clinic.test")

		_, err := mr.Create(ctx, model.Message{SenderID: sender.ID, RecipientID: recipient.ID, Body: "hola"})
		require.NoError(t, err)
		_, err = mr.Create(ctx, model.Message{SenderID: recipient.ID, RecipientID: sender.ID, Body: "hola de vuelta"})
		require.NoError(t, err)

		between, err := mr.GetBetween(ctx, sender.ID, recipient.ID)
		require.NoError(t, err)
		require.Len(t, between, 2)

		removed, err := mr.DeleteByParticipant(ctx, sender.ID)
		require.NoError(t, err)
		require.Equal(t, int64(2), removed)
	})
}
