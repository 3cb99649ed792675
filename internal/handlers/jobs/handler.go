package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/handlers"
	"gitlab.com/autoserver-2025.net/internal/handlers/response"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

const defaultEventLimit = 100

// JobService is the registry surface the gateway needs
type JobService interface {
	primary.JobRegistry
	GetJobState(job uint32) (domain.JobState, error)
}

// JobHandler handles job API requests
type JobHandler struct {
	jobService JobService
	events     secondary.JobEventRepository
	logger     primary.Logger
}

// NewJobHandler creates a new job handler. events may be nil when no audit
// store is configured.
func NewJobHandler(jobService JobService, events secondary.JobEventRepository, logger primary.Logger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		events:     events,
		logger:     logger,
	}
}

// RegisterRoutes registers the API routes for JobHandler. Reads need an
// observer token, anything changing a job needs an operator token.
func (h *JobHandler) RegisterRoutes(router *mux.Router, mw *handlers.MiddlewareProvider) {
	read := func(fn http.HandlerFunc) http.Handler { return mw.Require(domain.RoleObserver, fn) }
	write := func(fn http.HandlerFunc) http.Handler { return mw.Require(domain.RoleOperator, fn) }

	router.Handle("/api/server", read(h.GetServer)).Methods("GET")
	router.Handle("/api/jobs", read(h.ListJobs)).Methods("GET")
	router.Handle("/api/jobs/{job}", read(h.GetJob)).Methods("GET")
	router.Handle("/api/jobs/{job}/tree", read(h.GetInstructionTree)).Methods("GET")
	router.Handle("/api/jobs/{job}/events", read(h.ListEvents)).Methods("GET")
	router.Handle("/api/jobs/{job}/commands", write(h.SendCommand)).Methods("POST")
	router.Handle("/api/jobs/{job}/breakpoints/{instruction}", write(h.EditBreakpoint)).Methods("PUT")
	router.Handle("/api/jobs/{job}/input", write(h.SetClientReply)).Methods("POST")
}

func parseIndex(r *http.Request, name string) (uint32, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func (h *JobHandler) jobIndex(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	index, ok := parseIndex(r, "job")
	if !ok {
		handlers.ResponseError(w, "Invalid job index", http.StatusBadRequest)
	}
	return index, ok
}

func (h *JobHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.UnknownJob), errors.Is(err, errs.UnknownInstruction):
		handlers.ResponseError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errs.UnknownJobCommand):
		handlers.ResponseError(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Request failed", "error", err)
		handlers.ResponseError(w, "Internal error", http.StatusInternalServerError)
	}
}

func callerName(r *http.Request) string {
	if caller, ok := handlers.Caller(r.Context()); ok {
		return caller.Username
	}
	return ""
}

// GetServer handles server description requests
func (h *JobHandler) GetServer(w http.ResponseWriter, r *http.Request) {
	response.WriteSuccess(w, ServerResponse{
		Prefix:       h.jobService.GetServerPrefix(),
		NumberOfJobs: h.jobService.GetNumberOfJobs(),
	})
}

// ListJobs handles job list requests
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	n := h.jobService.GetNumberOfJobs()
	jobs := make([]JobSummary, 0, n)
	for i := uint32(0); i < n; i++ {
		info, err := h.jobService.GetJobInfo(i)
		if err != nil {
			h.writeError(w, err)
			return
		}
		state, err := h.jobService.GetJobState(i)
		if err != nil {
			h.writeError(w, err)
			return
		}
		jobs = append(jobs, JobSummary{
			Index:         i,
			Prefix:        info.Prefix,
			ProcedureName: info.ProcedureName,
			State:         state.String(),
		})
	}
	response.WriteSuccess(w, map[string][]JobSummary{"jobs": jobs})
}

// GetJob handles job retrieval requests
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	info, err := h.jobService.GetJobInfo(index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	state, err := h.jobService.GetJobState(index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.WriteSuccess(w, JobResponse{Index: index, State: state.String(), Info: info})
}

// GetInstructionTree returns the instruction tree with current states as plain JSON
func (h *JobHandler) GetInstructionTree(w http.ResponseWriter, r *http.Request) {
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	tree, err := h.jobService.GetInstructionTree(index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	body, err := anyvalue.ToJSON(tree)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.WriteRaw(w, body)
}

// ListEvents returns the audited updates of a job, newest first
func (h *JobHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		handlers.ResponseError(w, "Event log is not configured", http.StatusNotImplemented)
		return
	}
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			handlers.ResponseError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}
	info, err := h.jobService.GetJobInfo(index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events, err := h.events.ListEvents(r.Context(), info.Prefix, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []*domain.JobEvent{}
	}
	response.WriteSuccess(w, map[string][]*domain.JobEvent{"events": events})
}

// SendCommand queues a job command
func (h *JobHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	command, ok := domain.ParseJobCommand(req.Command)
	if !ok {
		handlers.ResponseError(w, errs.UnknownJobCommand.Error(), http.StatusBadRequest)
		return
	}
	if err := h.jobService.SendCommand(index, command); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("Job command sent", "job", index, "command", command.String(), "user", callerName(r))
	w.WriteHeader(http.StatusAccepted)
}

// EditBreakpoint sets or clears the breakpoint of one instruction
func (h *JobHandler) EditBreakpoint(w http.ResponseWriter, r *http.Request) {
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	instruction, ok := parseIndex(r, "instruction")
	if !ok {
		handlers.ResponseError(w, "Invalid instruction index", http.StatusBadRequest)
		return
	}
	var req BreakpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.jobService.EditBreakpoint(index, instruction, req.Active); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetClientReply answers a pending user input request
func (h *JobHandler) SetClientReply(w http.ResponseWriter, r *http.Request) {
	index, ok := h.jobIndex(w, r)
	if !ok {
		return
	}
	var req InputReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	value := anyvalue.Empty
	if len(req.Value) > 0 && string(req.Value) != "null" {
		v, err := anyvalue.FromJSON(req.Value)
		if err != nil {
			handlers.ResponseError(w, "Invalid reply value", http.StatusBadRequest)
			return
		}
		value = v
	}

	accepted, err := h.jobService.SetClientReply(index, req.ID, domain.UserInputReply{Result: req.Result, Value: value})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !accepted {
		handlers.ResponseWithJson(w, http.StatusConflict, InputReplyResponse{Accepted: false})
		return
	}
	h.logger.Info("Client reply accepted", "job", index, "id", req.ID, "user", callerName(r))
	response.WriteSuccess(w, InputReplyResponse{Accepted: true})
}
