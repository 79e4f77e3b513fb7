package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/jongsul/lostfound/internal/model"
	"github.com/jongsul/lostfound/internal/service"
	"github.com/jongsul/lostfound/internal/store"
)

// ItemsHandler handles the catalog and the owner-facing lifecycle endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Service *service.Service
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type itemWithCodeResponse struct {
	Item *model.Item       `json:"item"`
	Code *model.PickupCode `json:"pickup_code,omitempty"`
}

// List handles GET /api/items. Optional query params: q (free text over
// description/location) and tags (comma-separated tag IDs).
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")

	var tagIDs []int64
	if raw := r.URL.Query().Get("tags"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "invalid tag id")
				return
			}
			tagIDs = append(tagIDs, id)
		}
	}

	items, err := store.SearchItems(r.Context(), h.DB, text, tagIDs)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItemWithTags(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Claim handles POST /api/items/{id}/claim.
func (h *ItemsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, code, err := h.Service.Claim(r.Context(), id, claims.UserID)
	if err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, itemWithCodeResponse{Item: item, Code: code})
}

// Cancel handles POST /api/items/{id}/cancel.
func (h *ItemsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil || req.Reason == "" {
		jsonError(w, http.StatusBadRequest, "cancellation reason required")
		return
	}

	item, err := h.Service.Cancel(r.Context(), id, claims.UserID, req.Reason)
	if err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Detail handles GET /api/items/{id}/code: the owner's view of an item with
// its pickup code, reissued transparently if it expired.
func (h *ItemsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, code, err := h.Service.DetailWithCode(r.Context(), id, claims.UserID)
	if err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, itemWithCodeResponse{Item: item, Code: code})
}

// Mine handles GET /api/items/mine: items reserved or picked up by the caller.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	items, err := store.ListItemsByUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}
