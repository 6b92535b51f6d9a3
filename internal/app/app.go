package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/mneedham/pinot-cryptowatch/config"
	"github.com/mneedham/pinot-cryptowatch/internal/api"
	"github.com/mneedham/pinot-cryptowatch/internal/service"
	"github.com/mneedham/pinot-cryptowatch/internal/storage"
)

// InitializeApp sets up all application dependencies for API mode and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to the column store using InitPostgres().
//   - Initializes the repository layer (TradesRepository) and the dimension
//     resolver over the reference tables.
//   - Builds the aggregation engine and the dashboard bundle assembler.
//   - Creates the HTTP handler layer to handle requests.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, func(), error) {
	// Load global configuration
	cfg := config.AppConfig

	// Connect to the column store
	// indirection for unit testing
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	// Initialize repository layer (responsible for DB access)
	repo := storage.NewTradesRepository(db)
	dims := storage.NewDimensionResolver(db)

	// Initialize service layer (aggregation engine + bundle assembly)
	agg := service.NewWindowedAggregator(repo, dims)
	svc := service.NewDashboardService(agg)

	// Initialize HTTP handler layer (business logic to HTTP mapping)
	handler := api.NewHandler(svc)

	// Setup Gin router with routes
	router := api.NewRouter(handler)

	// Register health and readiness probes
	healthHandler := api.NewHealthHandler(db.Ping)
	healthHandler.Register(router)

	// Cleanup resources on shutdown
	cleanup := func() {
		_ = db.Close()
	}

	return router, cleanup, nil
}
