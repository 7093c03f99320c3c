package api

import (
	"net/http"

	"github.com/buemura/scanhub/internal/auth"
	"github.com/buemura/scanhub/internal/jobs"
	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/sirupsen/logrus"
)

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Jobs  *jobs.Manager
	Store store.Store
	Auth  *auth.Manager
	Log   logrus.FieldLogger
}

// NewHandlers creates API handlers with the given dependencies.
func NewHandlers(manager *jobs.Manager, st store.Store, am *auth.Manager, log logrus.FieldLogger) *Handlers {
	return &Handlers{Jobs: manager, Store: st, Auth: am, Log: log}
}

// CreateScan handles POST /api/scan.
func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.Jobs.Submit(r.Context(), auth.UserIDFromContext(r.Context()), req.TargetURL, req.ScanType)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     job.ID,
		"status": job.Status,
	})
}

// GetScan handles GET /api/scan/{id}. Only the owner sees the job's
// vulnerability records.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	user, ok := auth.UserFromContext(r.Context())
	if !ok || !job.OwnedBy(user.ID) {
		writeJSON(w, http.StatusOK, job)
		return
	}

	vulns, err := h.Store.ListVulnerabilitiesByJob(r.Context(), id)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if vulns == nil {
		vulns = []types.Vulnerability{}
	}
	writeJSON(w, http.StatusOK, ScanDetail{ScanJob: job, Vulnerabilities: vulns})
}

// ListScans handles GET /api/scans.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErr(w, h.Log, auth.ErrUnauthenticated)
		return
	}

	list, err := h.Store.ListJobsByOwner(r.Context(), user.ID)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if list == nil {
		list = []*types.ScanJob{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Register handles POST /api/register and logs the new user in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Auth.Register(r.Context(), reg)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if err := h.Auth.Login(w, r, user); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if err := h.Auth.Login(w, r, user); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout handles POST /api/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(w, r); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// CurrentUser handles GET /api/user.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErr(w, h.Log, auth.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
