package api

import (
	"net/http"

	"github.com/jongsul/lostfound/internal/service"
)

// KioskHandler handles the unauthenticated kiosk endpoints. Possession of
// the pickup code is the only credential on these paths.
type KioskHandler struct {
	Service *service.Service
}

type kioskRequest struct {
	PickupCode string `json:"pickup_code"`
}

// kioskItem is the subset of an item shown on the handover screen.
// The kiosk caller is unauthenticated, so owner and finder identities
// stay out of the payload.
type kioskItem struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
	LockerID    *int64 `json:"locker_id"`
}

type kioskPickupResponse struct {
	Message       string    `json:"message"`
	Item          kioskItem `json:"item"`
	LockerWarning string    `json:"locker_warning,omitempty"`
}

// Pickup handles POST /api/kiosk/pickup: validates the code, hands the item
// over and opens the locker. A failed locker command is reported as a
// warning because the handover is already committed.
func (h *KioskHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	var req kioskRequest
	if err := decodeJSON(r, &req); err != nil || len(req.PickupCode) == 0 {
		jsonError(w, http.StatusBadRequest, "pickup_code required")
		return
	}

	result, err := h.Service.Pickup(r.Context(), req.PickupCode)
	if err != nil {
		serviceError(w, err)
		return
	}

	resp := kioskPickupResponse{
		Message: "pickup confirmed",
		Item: kioskItem{
			ID:          result.Item.ID,
			Description: result.Item.Description,
			PhotoURL:    result.Item.PhotoURL,
			LockerID:    result.Item.LockerID,
		},
	}
	if result.DispatchErr != nil {
		resp.LockerWarning = "locker command failed, ask staff to open the locker"
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Close handles POST /api/kiosk/close: re-locks the locker after the item
// was taken out, using the consumed code as the credential.
func (h *KioskHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req kioskRequest
	if err := decodeJSON(r, &req); err != nil || len(req.PickupCode) == 0 {
		jsonError(w, http.StatusBadRequest, "pickup_code required")
		return
	}

	item, err := h.Service.CloseLocker(r.Context(), req.PickupCode)
	if err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "locker closed",
		"item_id": item.ID,
	})
}
