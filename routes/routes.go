package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gespadel/gespadel/docs"
	"github.com/gespadel/gespadel/handlers"
	"github.com/gespadel/gespadel/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router *chi.Mux,
	logger *slog.Logger,
	jwtSecret []byte,
	allowedOrigins []string,
	playerHandler *handlers.PlayerHandler,
	tournamentHandler *handlers.TournamentHandler,
	registrationHandler *handlers.RegistrationHandler,
	dashboardHandler *handlers.DashboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.Heartbeat("/ping"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(docs.SwaggerJSON)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate(jwtSecret)

	// Websocket routes skip the request timeout.
	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/tournaments", webSocketHandler.ServeAll)
		r.Get("/tournaments/{tournamentID}", webSocketHandler.ServeTournament)
	})

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))
		r.Use(authenticate)

		r.Post("/session", playerHandler.SessionHandler)

		r.Route("/me", func(r chi.Router) {
			r.Get("/", playerHandler.MeHandler)
			r.Put("/", playerHandler.UpdateMeHandler)
			r.Post("/picture", playerHandler.UploadPictureHandler)
			r.Get("/view", playerHandler.ViewHandler)
			r.Get("/registrations", playerHandler.MyRegistrationsHandler)
		})

		r.Get("/players/{playerID}", playerHandler.GetByIDHandler)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/player", dashboardHandler.PlayerHandler)
			r.Get("/organizer", dashboardHandler.OrganizerHandler)
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.Post("/", tournamentHandler.CreateHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", tournamentHandler.GetByIDHandler)
				r.Put("/", tournamentHandler.UpdateHandler)
				r.Delete("/", tournamentHandler.DeleteHandler)
				r.Patch("/status", tournamentHandler.UpdateStatusHandler)
				r.Get("/calendar", tournamentHandler.CalendarHandler)
				r.Get("/slots", tournamentHandler.SlotsHandler)
				r.Post("/poster", tournamentHandler.UploadPosterHandler)
				r.Post("/rules", tournamentHandler.UploadRulesHandler)
				r.Delete("/rules", tournamentHandler.RemoveRulesHandler)

				r.Post("/registrations", registrationHandler.RegisterHandler)
				r.Get("/registrations", registrationHandler.ReviewHandler)
			})
		})

		r.Post("/registrations/{registrationID}/cancel", registrationHandler.CancelHandler)
	})
}
