package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	apicontext "github.com/ovialab/cliniguard-server/internal/api/http/context"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// ClinicalService defines consultation and exam operations.
type ClinicalService interface {
	CreateConsultation(ctx context.Context, actor model.Actor, in model.Consultation) (model.Consultation, error)
	GetConsultation(ctx context.Context, id int64) (model.Consultation, error)
	GetConsultationsByPatient(ctx context.Context, patientID int64) ([]model.Consultation, error)
	UpdateConsultation(ctx context.Context, actor model.Actor, in model.Consultation) (model.Consultation, error)
	DeleteConsultation(ctx context.Context, actor model.Actor, id int64, cascade bool) error
	CreateExam(ctx context.Context, actor model.Actor, in model.Exam, attachment io.Reader) (model.Exam, error)
	GetExam(ctx context.Context, id int64) (model.Exam, error)
	GetExamsByPatient(ctx context.Context, patientID int64) ([]model.Exam, error)
	GetExamsByConsultation(ctx context.Context, consultationID int64) ([]model.Exam, error)
	DownloadAttachment(ctx context.Context, examID int64) (io.ReadCloser, error)
	DeleteExam(ctx context.Context, actor model.Actor, id int64) error
}

// PurgeService defines the cascading deletions of a subject's data and of
// a whole account.
type PurgeService interface {
	DeleteSubjectAndDependents(ctx context.Context, actor model.Actor, patientID int64) error
	DeleteAccountAndData(ctx context.Context, actor model.Actor, accountID int64) error
}

// Clinical handles HTTP endpoints for clinical records.
type Clinical struct {
	clinicalService ClinicalService
	purgeService    PurgeService
	logger          *logger.Logger
}

// NewClinical creates a new Clinical handler.
func NewClinical(clinicalService ClinicalService, purgeService PurgeService, logger *logger.Logger) *Clinical {
	return &Clinical{
		clinicalService: clinicalService,
		purgeService:    purgeService,
		logger:          logger,
	}
}

func actorFrom(r *http.Request) (model.Actor, bool) {
	identity, ok := apicontext.GetIdentity(r.Context())
	if !ok {
		return model.Actor{}, false
	}
	return model.Actor{
		AccountID: identity.AccountID,
		Role:      identity.Role,
		Source:    clientIP(r),
	}, true
}

type consultationRequest struct {
	PatientID   int64     `json:"patient_id"`
	ClinicianID int64     `json:"clinician_id"`
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	Motive      string    `json:"motive"`
	Symptoms    string    `json:"symptoms"`
	Diagnosis   string    `json:"diagnosis"`
	Treatment   string    `json:"treatment"`
	Notes       string    `json:"notes"`
}

type consultationResponse struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	ClinicianID int64     `json:"clinician_id"`
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	Motive      string    `json:"motive"`
	Symptoms    string    `json:"symptoms"`
	Diagnosis   string    `json:"diagnosis"`
	Treatment   string    `json:"treatment"`
	Notes       string    `json:"notes"`
}

func toConsultationResponse(c model.Consultation) consultationResponse {
	return consultationResponse{
		ID:          c.ID,
		PatientID:   c.PatientID,
		ClinicianID: c.ClinicianID,
		Date:        c.Date,
		Kind:        c.Kind,
		Motive:      c.Motive,
		Symptoms:    c.Symptoms,
		Diagnosis:   c.Diagnosis,
		Treatment:   c.Treatment,
		Notes:       c.Notes,
	}
}

// CreateConsultation records a new consultation.
func (h *Clinical) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req consultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.clinicalService.CreateConsultation(r.Context(), actor, model.Consultation{
		PatientID:   req.PatientID,
		ClinicianID: req.ClinicianID,
		Date:        req.Date,
		Kind:        req.Kind,
		Motive:      req.Motive,
		Symptoms:    req.Symptoms,
		Diagnosis:   req.Diagnosis,
		Treatment:   req.Treatment,
		Notes:       req.Notes,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConsultationResponse(saved))
}

// GetConsultation returns one consultation with decrypted fields.
func (h *Clinical) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return
	}

	c, err := h.clinicalService.GetConsultation(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

// ListConsultations returns a patient's consultations.
func (h *Clinical) ListConsultations(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	list, err := h.clinicalService.GetConsultationsByPatient(r.Context(), patientID)
	if err != nil {
		handleError(w, err)
		return
	}

	response := make([]consultationResponse, len(list))
	for i, c := range list {
		response[i] = toConsultationResponse(c)
	}

	writeJSON(w, http.StatusOK, response)
}

// UpdateConsultation rewrites a consultation's fields.
func (h *Clinical) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return
	}

	var req consultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.clinicalService.UpdateConsultation(r.Context(), actor, model.Consultation{
		ID:          id,
		PatientID:   req.PatientID,
		ClinicianID: req.ClinicianID,
		Date:        req.Date,
		Kind:        req.Kind,
		Motive:      req.Motive,
		Symptoms:    req.Symptoms,
		Diagnosis:   req.Diagnosis,
		Treatment:   req.Treatment,
		Notes:       req.Notes,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConsultationResponse(saved))
}

// DeleteConsultation removes a consultation; ?cascade=true removes its
// referencing exams with it.
func (h *Clinical) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return
	}

	cascade := r.URL.Query().Get("cascade") == "true"

	if err := h.clinicalService.DeleteConsultation(r.Context(), actor, id, cascade); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type examResponse struct {
	ID             int64     `json:"id"`
	PatientID      int64     `json:"patient_id"`
	ClinicianID    int64     `json:"clinician_id"`
	ConsultationID *int64    `json:"consultation_id,omitempty"`
	Date           time.Time `json:"date"`
	Kind           string    `json:"kind"`
	Observations   string    `json:"observations"`
	HasAttachment  bool      `json:"has_attachment"`
}

func toExamResponse(e model.Exam) examResponse {
	return examResponse{
		ID:             e.ID,
		PatientID:      e.PatientID,
		ClinicianID:    e.ClinicianID,
		ConsultationID: e.ConsultationID,
		Date:           e.Date,
		Kind:           e.Kind,
		Observations:   e.Observations,
		HasAttachment:  e.AttachmentKey != "",
	}
}

// CreateExam records a new exam from a multipart form, with an optional
// "attachment" file part.
func (h *Clinical) CreateExam(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	// 32 MiB in memory, larger parts spill to disk.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	exam, err := examFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var attachment io.Reader
	if file, _, err := r.FormFile("attachment"); err == nil {
		defer file.Close()
		attachment = file
	}

	saved, err := h.clinicalService.CreateExam(r.Context(), actor, exam, attachment)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExamResponse(saved))
}

// GetExam returns one exam with decrypted observations.
func (h *Clinical) GetExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exam id")
		return
	}

	e, err := h.clinicalService.GetExam(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExamResponse(e))
}

// ListExams returns a patient's exams.
func (h *Clinical) ListExams(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	list, err := h.clinicalService.GetExamsByPatient(r.Context(), patientID)
	if err != nil {
		handleError(w, err)
		return
	}

	response := make([]examResponse, len(list))
	for i, e := range list {
		response[i] = toExamResponse(e)
	}

	writeJSON(w, http.StatusOK, response)
}

// ListConsultationExams returns the exams referencing one consultation.
func (h *Clinical) ListConsultationExams(w http.ResponseWriter, r *http.Request) {
	consultationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return
	}

	list, err := h.clinicalService.GetExamsByConsultation(r.Context(), consultationID)
	if err != nil {
		handleError(w, err)
		return
	}

	response := make([]examResponse, len(list))
	for i, e := range list {
		response[i] = toExamResponse(e)
	}

	writeJSON(w, http.StatusOK, response)
}

// DownloadAttachment streams the exam's attachment.
func (h *Clinical) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exam id")
		return
	}

	reader, err := h.clinicalService.DownloadAttachment(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("Clinical handler: attachment stream interrupted",
			"exam_id", id,
			"error", err.Error())
	}
}

// DeleteExam removes one exam.
func (h *Clinical) DeleteExam(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exam id")
		return
	}

	if err := h.clinicalService.DeleteExam(r.Context(), actor, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeletePatient purges a patient and every dependent record.
func (h *Clinical) DeletePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	if err := h.purgeService.DeleteSubjectAndDependents(r.Context(), actor, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes an account's identity row and every dependent record.
func (h *Clinical) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.purgeService.DeleteAccountAndData(r.Context(), actor, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func examFromForm(r *http.Request) (model.Exam, error) {
	patientID, err := strconv.ParseInt(r.FormValue("patient_id"), 10, 64)
	if err != nil {
		return model.Exam{}, errInvalidField("patient_id")
	}

	clinicianID, err := strconv.ParseInt(r.FormValue("clinician_id"), 10, 64)
	if err != nil {
		return model.Exam{}, errInvalidField("clinician_id")
	}

	exam := model.Exam{
		PatientID:    patientID,
		ClinicianID:  clinicianID,
		Kind:         r.FormValue("kind"),
		Observations: r.FormValue("observations"),
		Date:         time.Now(),
	}

	if raw := r.FormValue("consultation_id"); raw != "" {
		consultationID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.Exam{}, errInvalidField("consultation_id")
		}
		exam.ConsultationID = &consultationID
	}

	if raw := r.FormValue("date"); raw != "" {
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.Exam{}, errInvalidField("date")
		}
		exam.Date = date
	}

	return exam, nil
}

type fieldError string

func (e fieldError) Error() string { return "invalid " + string(e) }

func errInvalidField(name string) error { return fieldError(name) }
