package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	pipelines   *service.PipelineService
	conversions *service.ConversionService
	projects    *service.ProjectService
	budgets     *service.BudgetService
	progress    *service.ProgressService
	briefs      *service.BriefService
	approvals   *service.ApprovalService
	escalations *service.EscalationService
	log         *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	pipelines *service.PipelineService,
	conversions *service.ConversionService,
	projects *service.ProjectService,
	budgets *service.BudgetService,
	progress *service.ProgressService,
	briefs *service.BriefService,
	approvals *service.ApprovalService,
	escalations *service.EscalationService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		pipelines:   pipelines,
		conversions: conversions,
		projects:    projects,
		budgets:     budgets,
		progress:    progress,
		briefs:      briefs,
		approvals:   approvals,
		escalations: escalations,
		log:         log,
	}
}

// statusFromCode maps a coded error to an HTTP status.
func statusFromCode(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeReadOnly, errors.ErrCodeAlreadyDecided, errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFromCode(code)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

// ── pipelines ─────────────────────────────────────────────────────────────────

// CreatePipeline handles create pipeline HTTP requests
func (h *HTTPHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.CreatePipeline(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, pipeline)
}

// GetPipeline handles get pipeline HTTP requests
func (h *HTTPHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Pipeline ID is required", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.GetPipeline(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pipeline)
}

// UpdatePipelineStage handles pipeline stage transition HTTP requests
func (h *HTTPHandler) UpdatePipelineStage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID      string `json:"id"`
		Stage   string `json:"stage"`
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.UpdateStage(r.Context(), req.ID, req.Stage, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pipeline)
}

// UpdatePipelineEvaluation handles pipeline evaluation HTTP requests
func (h *HTTPHandler) UpdatePipelineEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		service.EvaluationPatch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.UpdateEvaluation(r.Context(), req.ID, &req.EvaluationPatch, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pipeline)
}

// PipelineNotes handles weekly note HTTP requests (POST to add, GET to list)
func (h *HTTPHandler) PipelineNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req service.AddWeeklyNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		note, err := h.pipelines.AddWeeklyNote(r.Context(), &req)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, note)

	case http.MethodGet:
		pipelineID := r.URL.Query().Get("pipeline_id")
		if pipelineID == "" {
			http.Error(w, "Pipeline ID is required", http.StatusBadRequest)
			return
		}

		notes, err := h.pipelines.ListWeeklyNotes(r.Context(), pipelineID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AcceptPipeline handles pipeline accept HTTP requests
func (h *HTTPHandler) AcceptPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		Note   *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, err := h.conversions.AcceptPipeline(r.Context(), req.ID, req.UserID, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

// DeclinePipeline handles pipeline decline HTTP requests
func (h *HTTPHandler) DeclinePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		Note   *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.conversions.DeclinePipeline(r.Context(), req.ID, req.UserID, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pipeline)
}

// ── projects ──────────────────────────────────────────────────────────────────

// GetProject handles get project HTTP requests
func (h *HTTPHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Project ID is required", http.StatusBadRequest)
		return
	}

	project, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, project)
}

// ── budget ────────────────────────────────────────────────────────────────────

// BudgetEvents handles budget ledger HTTP requests (POST to append, GET to list)
func (h *HTTPHandler) BudgetEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req service.CreateBudgetEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		event, err := h.budgets.CreateEvent(r.Context(), &req)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, event)

	case http.MethodGet:
		projectID := r.URL.Query().Get("project_id")
		if projectID == "" {
			http.Error(w, "Project ID is required", http.StatusBadRequest)
			return
		}

		events, err := h.budgets.ListEvents(r.Context(), projectID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// UpdateBudgetEventStatus handles budget event status HTTP requests
func (h *HTTPHandler) UpdateBudgetEventStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID        string `json:"id"`
		ProjectID string `json:"project_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.budgets.UpdateEventStatus(r.Context(), req.ID, req.ProjectID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// GetBudgetThreshold handles budget threshold HTTP requests
func (h *HTTPHandler) GetBudgetThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "Project ID is required", http.StatusBadRequest)
		return
	}

	threshold, err := h.budgets.GetThreshold(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, threshold)
}

// ── phases ────────────────────────────────────────────────────────────────────

// CreatePhaseItem handles phase checklist item create HTTP requests
func (h *HTTPHandler) CreatePhaseItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.CreatePhaseItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.progress.CreateItem(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

// UpdatePhaseItem handles phase checklist item update HTTP requests
func (h *HTTPHandler) UpdatePhaseItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PhaseID string `json:"phase_id"`
		ItemID  string `json:"item_id"`
		service.PhaseItemPatch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.progress.UpdateItem(r.Context(), req.PhaseID, req.ItemID, &req.PhaseItemPatch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// DeletePhaseItem handles phase checklist item delete HTTP requests
func (h *HTTPHandler) DeletePhaseItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	phaseID := r.URL.Query().Get("phase_id")
	itemID := r.URL.Query().Get("item_id")
	if phaseID == "" || itemID == "" {
		http.Error(w, "Phase ID and Item ID are required", http.StatusBadRequest)
		return
	}

	if err := h.progress.DeleteItem(r.Context(), phaseID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── strategic briefs ──────────────────────────────────────────────────────────

// GetBrief handles get brief HTTP requests
func (h *HTTPHandler) GetBrief(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Brief ID is required", http.StatusBadRequest)
		return
	}

	brief, err := h.briefs.GetBrief(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, brief)
}

// GetBriefSections handles brief section list HTTP requests
func (h *HTTPHandler) GetBriefSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	briefID := r.URL.Query().Get("brief_id")
	if briefID == "" {
		http.Error(w, "Brief ID is required", http.StatusBadRequest)
		return
	}

	sections, err := h.briefs.GetSections(r.Context(), briefID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"sections": sections})
}

// UpdateBriefSection handles brief section update HTTP requests
func (h *HTTPHandler) UpdateBriefSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BriefID       string `json:"brief_id"`
		SectionNumber int    `json:"section_number"`
		UserID        string `json:"user_id"`
		service.BriefSectionPatch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	brief, err := h.briefs.UpdateSection(r.Context(), req.BriefID, req.SectionNumber, &req.BriefSectionPatch, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, brief)
}

// SubmitBrief handles brief submit HTTP requests
func (h *HTTPHandler) SubmitBrief(w http.ResponseWriter, r *http.Request) {
	h.briefTransition(w, r, h.briefs.Submit)
}

// ApproveBrief handles brief approve HTTP requests
func (h *HTTPHandler) ApproveBrief(w http.ResponseWriter, r *http.Request) {
	h.briefTransition(w, r, h.briefs.Approve)
}

// RequestBriefRevision handles brief revision request HTTP requests
func (h *HTTPHandler) RequestBriefRevision(w http.ResponseWriter, r *http.Request) {
	h.briefTransition(w, r, h.briefs.RequestRevision)
}

func (h *HTTPHandler) briefTransition(w http.ResponseWriter, r *http.Request, fn service.BriefTransition) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	brief, err := fn(r.Context(), req.ID, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, brief)
}

// ── approvals ─────────────────────────────────────────────────────────────────

// SubmitApproval handles approval submit HTTP requests
func (h *HTTPHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.SubmitApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	approval, err := h.approvals.SubmitApproval(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, approval)
}

// DecideApproval handles approval decision HTTP requests
func (h *HTTPHandler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID       string  `json:"id"`
		UserID   string  `json:"user_id"`
		Decision string  `json:"decision"`
		Comment  *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	approval, err := h.approvals.DecideApproval(r.Context(), req.ID, req.UserID, req.Decision, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, approval)
}

// GetApproval handles get approval HTTP requests
func (h *HTTPHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Approval ID is required", http.StatusBadRequest)
		return
	}

	approval, err := h.approvals.GetApproval(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, approval)
}

// GetApprovalHistory handles approval history HTTP requests
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Approval ID is required", http.StatusBadRequest)
		return
	}

	history, err := h.approvals.GetApprovalHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// TriggerEscalationCheck handles escalation sweep HTTP requests
func (h *HTTPHandler) TriggerEscalationCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.escalations.TriggerEscalationCheck(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
