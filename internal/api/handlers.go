package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"printshop-workflow/internal/artifacts"
	"printshop-workflow/internal/models"
	"printshop-workflow/internal/notify"
	"printshop-workflow/internal/store"
)

type createJobRequest struct {
	JobCardNo    string  `json:"job_card_no"`
	CustomerName string  `json:"customer_name"`
	Phone        string  `json:"phone"`
	Area         string  `json:"area"`
	Urgent       bool    `json:"is_urgent"`
	Cost         float64 `json:"cost"`
	Advance      float64 `json:"advance"`
	DeliveryMode string  `json:"delivery_mode"`
	NeedsFixing  bool    `json:"needs_fixing"`
	Items        []struct {
		JobType     string  `json:"job_type"`
		Description string  `json:"description"`
		Size        string  `json:"size"`
		Quantity    int     `json:"quantity"`
		Material    string  `json:"material"`
		Cost        float64 `json:"cost"`
	} `json:"items"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok || id.Role != models.RoleAttendant {
		writeJSON(w, http.StatusForbidden, apiError{Code: "WRONG_ROLE", Message: "only the attendant registers jobs"})
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid json"})
		return
	}
	if req.CustomerName == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "customer_name and phone are required"})
		return
	}
	if req.DeliveryMode != "" && req.DeliveryMode != models.DeliveryOffice && req.DeliveryMode != models.DeliveryOnsite {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "delivery_mode must be office or onsite"})
		return
	}

	params := store.CreateJobParams{
		JobCardNo:    req.JobCardNo,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Area:         req.Area,
		Urgent:       req.Urgent,
		Cost:         req.Cost,
		Advance:      req.Advance,
		DeliveryMode: req.DeliveryMode,
		NeedsFixing:  req.NeedsFixing,
	}
	for i, item := range req.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		params.Items = append(params.Items, models.JobItem{
			Position:    i,
			JobType:     item.JobType,
			Description: item.Description,
			Size:        item.Size,
			Quantity:    qty,
			Material:    item.Material,
			Cost:        item.Cost,
		})
	}

	job, err := s.store.CreateJob(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Int64("job_id", job.ID).Str("by", id.ID).Msg("job registered")
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	job, err := s.store.GetJobWithItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	entries, err := s.store.ListLogs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	jobs, err := s.engine.Pool(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	job, ok, err := s.engine.Active(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"job": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	job, err := s.engine.Claim(r.Context(), id, jid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	job, err := s.engine.Advance(r.Context(), id, jid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type reworkRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRework(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	var req reworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid json"})
		return
	}
	job, err := s.engine.Rework(r.Context(), id, jid, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type paymentRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	if id.Role != models.RoleBilling {
		writeJSON(w, http.StatusForbidden, apiError{Code: "WRONG_ROLE", Message: "only billing records payment"})
		return
	}
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "mode is required"})
		return
	}
	affected, err := s.store.SetPaymentMode(r.Context(), jid, req.Mode, id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !affected {
		writeJSON(w, http.StatusConflict, apiError{Code: "STALE_STATE", Message: "job is not held by you in billing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	if err := s.otp.GenerateAndSend(r.Context(), jid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type otpVerifyRequest struct {
	Code string `json:"code"`
}

// handleOTPVerify validates the customer's code and, on success, performs
// the OTP-gated advance out of the current stage.
func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "code is required"})
		return
	}
	if err := s.otp.Verify(r.Context(), jid, req.Code); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.engine.Advance(r.Context(), id, jid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleNotifyResend re-queues the stored notification without repeating
// any state transition: an active OTP challenge is re-sent as-is, a
// completed job gets its thank-you again.
func (s *Server) handleNotifyResend(w http.ResponseWriter, r *http.Request) {
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	job, err := s.store.GetJob(r.Context(), jid)
	if err != nil {
		writeError(w, err)
		return
	}
	if job.OTPCode != nil {
		if err := s.otp.Resend(r.Context(), jid); err != nil {
			writeError(w, err)
			return
		}
	} else if job.Status == models.StatusCompleted {
		if err := s.queue.EnqueueThankYou(r.Context(), job); err != nil {
			writeError(w, err)
			return
		}
	} else {
		writeJSON(w, http.StatusConflict, apiError{Code: "NOTHING_TO_RESEND", Message: "job has no pending notification"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

const maxUploadBytes = 50 << 20

func (s *Server) handleArtifactUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	if id.Role != models.RoleDesigner {
		writeJSON(w, http.StatusForbidden, apiError{Code: "WRONG_ROLE", Message: "only designers upload design files"})
		return
	}
	jid, err := jobID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid job id"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "invalid multipart body"})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: "at least one file is required"})
		return
	}

	uploads := make([]artifacts.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, err)
			return
		}
		body, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, err)
			return
		}
		uploads = append(uploads, artifacts.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        body,
		})
	}

	urls, err := s.artifacts.SaveDesignFiles(r.Context(), jid, uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	affected, err := s.store.AppendDesignURLs(r.Context(), jid, strings.Join(urls, ","), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !affected {
		writeJSON(w, http.StatusConflict, apiError{Code: "STALE_STATE", Message: "job is not held by you in design"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": urls})
}

// handleEvents streams change hints as server-sent events. Clients treat
// each event as "re-fetch now"; the stream carries no authoritative state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	events, cancel, err := s.feed.Subscribe(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: job\ndata: %d\n\n", id)
			flusher.Flush()
		}
	}
}

func (s *Server) handleNotifyDLQ(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.queue.DLQPeek(r.Context(), 100)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []notify.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": msgs})
}
