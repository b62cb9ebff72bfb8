package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/tugsousa/fundfolio/src/calendar"
	"github.com/tugsousa/fundfolio/src/config"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/handlers"
	"github.com/tugsousa/fundfolio/src/logger"
	"github.com/tugsousa/fundfolio/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Fundfolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	tradingCalendar := calendar.New(&calendar.SQLStore{DB: database.DB}, config.Cfg.CalendarScanLimitDays)
	quoteService := services.NewQuoteService(
		config.Cfg.NavRealtimeBaseURL,
		config.Cfg.NavHistoryBaseURL,
		config.Cfg.NavFetchTimeout,
	)
	navService := services.NewNavService(quoteService,
		config.Cfg.NavHistoryMin, config.Cfg.NavHistoryMax, config.Cfg.NearestNavMaxLagDays)
	settlementService := services.NewSettlementService(database.DB, tradingCalendar, navService, config.Cfg.SettleCutoffHour)
	dailyProfitService := services.NewDailyProfitService(database.DB, quoteService, config.Cfg.NavHistoryMax)
	refreshService := services.NewRefreshService(database.DB, quoteService, config.Cfg.NavFetchDelay)

	directionHandler := handlers.NewDirectionHandler(dailyProfitService)
	fundHandler := handlers.NewFundHandler(refreshService)
	txHandler := handlers.NewTransactionHandler()
	pendingHandler := handlers.NewPendingHandler(settlementService)
	plannedHandler := handlers.NewPlannedHandler()
	holidayHandler := handlers.NewHolidayHandler()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/directions", directionHandler.HandleListDirections)
	apiRouter.HandleFunc("POST /api/directions", directionHandler.HandleCreateDirection)
	apiRouter.HandleFunc("PUT /api/directions/{id}", directionHandler.HandleUpdateDirection)
	apiRouter.HandleFunc("DELETE /api/directions/{id}", directionHandler.HandleDeleteDirection)
	apiRouter.HandleFunc("GET /api/directions/{id}/summary", directionHandler.HandleGetDirectionSummary)
	apiRouter.HandleFunc("GET /api/directions/{id}/detail", directionHandler.HandleGetDirectionDetail)
	apiRouter.HandleFunc("GET /api/directions/{id}/daily-profits", directionHandler.HandleListDailyProfits)
	apiRouter.HandleFunc("POST /api/directions/{id}/daily-profits/backfill", directionHandler.HandleBackfillDailyProfits)
	apiRouter.HandleFunc("POST /api/directions/{id}/targets", directionHandler.HandleUpsertCategoryTarget)
	apiRouter.HandleFunc("POST /api/directions/{id}/funds", fundHandler.HandleCreateFund)

	apiRouter.HandleFunc("PUT /api/funds/{id}", fundHandler.HandleUpdateFund)
	apiRouter.HandleFunc("DELETE /api/funds/{id}", fundHandler.HandleDeleteFund)
	apiRouter.HandleFunc("GET /api/funds/{id}/transactions", txHandler.HandleListTransactions)
	apiRouter.HandleFunc("POST /api/funds/{id}/transactions", txHandler.HandleCreateTransaction)
	apiRouter.HandleFunc("POST /api/funds/{id}/pending", pendingHandler.HandleCreatePending)
	apiRouter.HandleFunc("POST /api/funds/{id}/planned", plannedHandler.HandleCreatePlanned)

	apiRouter.HandleFunc("PUT /api/transactions/{id}", txHandler.HandleReplaceTransaction)
	apiRouter.HandleFunc("DELETE /api/transactions/{id}", txHandler.HandleDeleteTransaction)

	apiRouter.HandleFunc("DELETE /api/pending/{id}", pendingHandler.HandleCancelPending)
	apiRouter.HandleFunc("POST /api/pending/confirm", pendingHandler.HandleConfirmPending)
	apiRouter.HandleFunc("POST /api/planned/{id}/complete", plannedHandler.HandleCompletePlanned)

	apiRouter.HandleFunc("POST /api/navs/refresh", fundHandler.HandleRefreshNavs)

	apiRouter.HandleFunc("GET /api/holidays", holidayHandler.HandleListHolidays)
	apiRouter.HandleFunc("POST /api/holidays", holidayHandler.HandleCreateHoliday)
	apiRouter.HandleFunc("DELETE /api/holidays/{id}", holidayHandler.HandleDeleteHoliday)

	rootMux.Handle("/api/", handlers.RequestLogMiddleware(apiRouter))

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "FUNDFOLIO Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
