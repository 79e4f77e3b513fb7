package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/jongsul/lostfound/internal/imaging"
	"github.com/jongsul/lostfound/internal/photo"
	"github.com/jongsul/lostfound/internal/service"
	"github.com/jongsul/lostfound/internal/store"
)

// MaxPhotoSize limits uploaded photo size (10 MB).
const MaxPhotoSize = 10 << 20

// FixtureDevice marks items seeded for development so they can be purged
// without touching real registrations.
const FixtureDevice = "dev-fixture"

// AdminHandler handles staff-only endpoints.
type AdminHandler struct {
	DB      *sql.DB
	Service *service.Service
	Photos  *photo.Store
	Locker  service.LockerDispatcher
}

// RegisterItem handles POST /api/admin/items. It accepts a multipart form
// with a photo part plus metadata fields, processes and uploads the photo,
// and registers the item.
func (h *AdminHandler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxPhotoSize); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	description := r.FormValue("description")
	location := r.FormValue("location")
	if description == "" || location == "" {
		jsonError(w, http.StatusBadRequest, "description and location required")
		return
	}

	var lockerID *int64
	if v := r.FormValue("locker_id"); v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid locker_id")
			return
		}
		lockerID = &id
	}

	var photoURL string
	file, _, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()

		processed, err := imaging.Process(file)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		if h.Photos == nil {
			jsonError(w, http.StatusServiceUnavailable, "photo storage not configured")
			return
		}
		photoURL, err = h.Photos.Upload(r.Context(), processed.Data)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to store photo")
			return
		}
	}

	item, err := h.Service.RegisterItem(r.Context(), store.CreateItemParams{
		PhotoURL:    photoURL,
		DeviceName:  r.FormValue("device_name"),
		Location:    location,
		LockerID:    lockerID,
		Description: description,
	}, r.FormValue("category"), nil)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// PresignPhoto handles POST /api/admin/photos/presign. Capture devices use
// the returned URL to upload directly without routing bytes through the API.
func (h *AdminHandler) PresignPhoto(w http.ResponseWriter, r *http.Request) {
	if h.Photos == nil {
		jsonError(w, http.StatusServiceUnavailable, "photo storage not configured")
		return
	}
	uploadURL, publicURL, err := h.Photos.PresignUpload(r.Context(), 15*time.Minute)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to presign upload")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"upload_url": uploadURL,
		"public_url": publicURL,
	})
}

type lockerTestRequest struct {
	DeviceName string `json:"device_name"`
	LockerID   int64  `json:"locker_id"`
}

// OpenLocker handles POST /api/admin/locker/open for testing locker
// hardware without going through a pickup.
func (h *AdminHandler) OpenLocker(w http.ResponseWriter, r *http.Request) {
	var req lockerTestRequest
	if err := decodeJSON(r, &req); err != nil || req.DeviceName == "" {
		jsonError(w, http.StatusBadRequest, "device_name required")
		return
	}
	if err := h.Locker.Open(r.Context(), req.DeviceName, req.LockerID); err != nil {
		jsonError(w, http.StatusBadGateway, "locker command failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "open command sent"})
}

// SeedFixtures handles POST /api/admin/fixtures. It registers a small set
// of sample items under the fixture device name.
func (h *AdminHandler) SeedFixtures(w http.ResponseWriter, r *http.Request) {
	fixtures := []store.CreateItemParams{
		{Description: "black umbrella", Location: "library entrance", DeviceName: FixtureDevice},
		{Description: "silver water bottle", Location: "gym locker room", DeviceName: FixtureDevice},
		{Description: "blue backpack", Location: "cafeteria", DeviceName: FixtureDevice},
	}

	created := 0
	for _, p := range fixtures {
		if _, err := h.Service.RegisterItem(r.Context(), p, "", nil); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to seed fixtures")
			return
		}
		created++
	}
	jsonResponse(w, http.StatusCreated, map[string]int{"created": created})
}

// PurgeFixtures handles DELETE /api/admin/fixtures. Only fixture-device
// items are removed; their codes go with them by FK cascade.
func (h *AdminHandler) PurgeFixtures(w http.ResponseWriter, r *http.Request) {
	deleted, err := store.DeleteItemsByDevice(r.Context(), h.DB, FixtureDevice)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to purge fixtures")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
