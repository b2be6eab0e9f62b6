package wire

import (
	"net/http"

	"event-ticket/internal/adaptor"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/live"
	"event-ticket/internal/usecase"
	"event-ticket/pkg/middleware"
	"event-ticket/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the wired HTTP router and the broker-facing handlers.
type App struct {
	Router   *chi.Mux
	Service  *usecase.Service
	Payments *adaptor.PaymentConsumer
	Sweeper  *usecase.Sweeper
}

// Wiring builds services and handlers on top of repo. deps.Feed should be
// hub so the stream endpoint sees what the services publish.
func Wiring(repo *repository.Repository, deps usecase.Deps, hub *live.Hub, config *utils.Config, logger *zap.Logger) *App {
	service := usecase.NewService(repo, deps, config, logger)
	handler := adaptor.NewHandler(service, hub, logger)

	router := setupRouter(handler, config, logger)

	return &App{
		Router:   router,
		Service:  service,
		Payments: adaptor.NewPaymentConsumer(service.Confirmation, logger),
		Sweeper:  usecase.NewSweeper(repo, deps, config.Reserve.SweepInterval, logger),
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))

	r.Route("/api/events", func(r chi.Router) {
		wireEvent(r, handler.Event, handler.Stream)
		wireReservation(r, handler.Reservation)
	})
	wireTicket(r, handler.Ticket)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
