package api

import (
	"database/sql"
	"net/http"

	"github.com/jongsul/lostfound/internal/mailer"
	"github.com/jongsul/lostfound/internal/photo"
	"github.com/jongsul/lostfound/internal/service"
	"github.com/jongsul/lostfound/internal/verify"
)

// Deps bundles the dependencies the router hands out to handlers.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Service   *service.Service
	Locker    service.LockerDispatcher
	Photos    *photo.Store
	Verifier  *verify.Repo
	Mailer    mailer.Sender
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, Verifier: d.Verifier, Mailer: d.Mailer}
	itemsHandler := &ItemsHandler{DB: d.DB, Service: d.Service}
	tagsHandler := &TagsHandler{DB: d.DB}
	kioskHandler := &KioskHandler{Service: d.Service}
	adminHandler := &AdminHandler{DB: d.DB, Service: d.Service, Photos: d.Photos, Locker: d.Locker}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMW(RequireAdmin(h))
	}

	// Public: signup flow and login.
	mux.HandleFunc("POST /api/users/verify/request", authHandler.RequestCode)
	mux.HandleFunc("POST /api/users/verify/confirm", authHandler.ConfirmCode)
	mux.HandleFunc("POST /api/users/register", authHandler.Register)
	mux.HandleFunc("POST /api/users/login", authHandler.Login)

	// Public: kiosk. The pickup code is the credential.
	mux.HandleFunc("POST /api/kiosk/pickup", kioskHandler.Pickup)
	mux.HandleFunc("POST /api/kiosk/close", kioskHandler.Close)

	// Public: catalog. Browsing needs no account; claiming does.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)

	// Authenticated user routes.
	mux.Handle("POST /api/users/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/users/me", authMW(http.HandlerFunc(authHandler.Me)))

	// Lifecycle.
	mux.Handle("GET /api/items/mine", authMW(http.HandlerFunc(itemsHandler.Mine)))
	mux.Handle("POST /api/items/{id}/claim", authMW(http.HandlerFunc(itemsHandler.Claim)))
	mux.Handle("POST /api/items/{id}/cancel", authMW(http.HandlerFunc(itemsHandler.Cancel)))
	mux.Handle("GET /api/items/{id}/code", authMW(http.HandlerFunc(itemsHandler.Detail)))

	// Tags: read (all users), write (admin).
	mux.Handle("GET /api/tags", authMW(http.HandlerFunc(tagsHandler.List)))
	mux.Handle("POST /api/tags", admin(tagsHandler.Create))
	mux.Handle("PUT /api/tags/{id}", admin(tagsHandler.Update))
	mux.Handle("DELETE /api/tags/{id}", admin(tagsHandler.Delete))

	// Admin: manual registration, photo presign, locker test, fixtures.
	mux.Handle("POST /api/admin/items", admin(adminHandler.RegisterItem))
	mux.Handle("POST /api/admin/photos/presign", admin(adminHandler.PresignPhoto))
	mux.Handle("POST /api/admin/locker/open", admin(adminHandler.OpenLocker))
	mux.Handle("POST /api/admin/fixtures", admin(adminHandler.SeedFixtures))
	mux.Handle("DELETE /api/admin/fixtures", admin(adminHandler.PurgeFixtures))

	return LoggingMiddleware(mux)
}
