package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/jongsul/lostfound/internal/model"
	"github.com/jongsul/lostfound/internal/store"
)

// TagsHandler handles tag endpoints.
type TagsHandler struct {
	DB *sql.DB
}

type tagRequest struct {
	Name       string `json:"name"`
	LockerSlot *int64 `json:"locker_slot"`
}

// List handles GET /api/tags.
func (h *TagsHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := store.ListTags(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	jsonResponse(w, http.StatusOK, tags)
}

// Create handles POST /api/tags (admin).
func (h *TagsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetTagByName(r.Context(), h.DB, req.Name)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "tag already exists")
		return
	}

	tag, err := store.CreateTag(r.Context(), h.DB, req.Name, req.LockerSlot)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}
	jsonResponse(w, http.StatusCreated, tag)
}

// Update handles PUT /api/tags/{id} (admin).
func (h *TagsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	var req tagRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateTag(r.Context(), h.DB, id, req.Name, req.LockerSlot); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update tag")
		return
	}

	tag, _ := store.GetTag(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, tag)
}

// Delete handles DELETE /api/tags/{id} (admin). Item links are removed by
// FK cascade.
func (h *TagsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	if err := store.DeleteTag(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "tag deleted"})
}
