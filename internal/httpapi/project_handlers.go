package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"projgate.org/internal/audit"
	"projgate.org/internal/auth"
	"projgate.org/internal/obs"
	"projgate.org/internal/projects"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newProjectResponse(p projects.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "invalid_json", Reason: err.Error()})
		return
	}
	p, err := a.projects.Create(r.Context(), caller, projects.Input{Name: req.Name, Description: req.Description})
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProjectCreate, map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusCreated, newProjectResponse(p))
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := a.projects.List(r.Context(), caller)
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	resp := make([]projectResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, newProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": resp})
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := a.projects.Get(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "invalid_json", Reason: err.Error()})
		return
	}
	p, err := a.projects.Update(r.Context(), caller, mux.Vars(r)["id"], projects.Input{Name: req.Name, Description: req.Description})
	if err != nil {
		handleProjectError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProjectUpdate, map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.projects.Delete(r.Context(), id); err != nil {
		handleProjectError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProjectDelete, map[string]any{"project_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// decodeJSON reads exactly one JSON value. The body size is bounded by the
// MaxBodyBytes middleware.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleProjectError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "validation_failed", Errors: verr.Fields})
	case errors.Is(err, projects.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found")
	default:
		obs.Log("error", "project_internal_error", map[string]any{
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
