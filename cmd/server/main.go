package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/marilagman/petalsandcrumbs/internal/config"
	"github.com/marilagman/petalsandcrumbs/internal/handlers"
	"github.com/marilagman/petalsandcrumbs/internal/mail"
	"github.com/marilagman/petalsandcrumbs/internal/realtime"
	"github.com/marilagman/petalsandcrumbs/internal/service"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

func main() {
	// Configure slog as early as possible in main.
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Init DB
	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	if err := db.InitSchema(); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// 3. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 4. Templates
	templates := handlers.NewTemplateCache()
	if err := templates.Load("templates"); err != nil {
		slog.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	// 5. Event hub and services
	hub := realtime.NewHub()
	go hub.Run()

	mailer := mail.NewSender(cfg.MailEndpoint)
	orders := service.NewOrderService(db, hub)

	// 6. Handlers
	homeHandler := &handlers.HomeHandler{
		Store:        db,
		Templates:    templates,
		SessionStore: sessionStore,
	}
	orderHandler := &handlers.OrderHandler{
		Store:        db,
		Orders:       orders,
		Templates:    templates,
		SessionStore: sessionStore,
		Mail:         mailer,
		BaseURL:      cfg.BaseURL,
	}
	adminHandler := &handlers.AdminHandler{
		Store:        db,
		Orders:       orders,
		SessionStore: sessionStore,
		Templates:    templates,
	}
	riderHandler := &handlers.RiderHandler{
		Store:     db,
		Orders:    orders,
		Templates: templates,
		Mail:      mailer,
		JWTSecret: cfg.JWTSecret,
	}
	wsHandler := handlers.NewWSHandler(db, hub, adminHandler, riderHandler)

	mux := http.NewServeMux()

	// Static Files
	fileServer := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", http.StripPrefix("/static", fileServer))

	// Rate Limiter for the anonymous submission endpoints
	rateLimiter := handlers.NewRateLimiter(1 * time.Minute)

	// Storefront
	mux.HandleFunc("/", homeHandler.Index)
	mux.HandleFunc("GET /cart", orderHandler.Cart)
	mux.HandleFunc("GET /quote", orderHandler.Quote)
	mux.HandleFunc("GET /checkout", orderHandler.CheckoutForm)
	mux.HandleFunc("POST /checkout", rateLimiter.Middleware(orderHandler.SubmitOrder))

	// Order Status (Magic Link)
	mux.HandleFunc("GET /status-request", orderHandler.RequestStatusLink)
	mux.HandleFunc("POST /status-request", rateLimiter.Middleware(orderHandler.SendStatusLink))
	mux.HandleFunc("GET /my-orders", orderHandler.MyOrders)
	mux.HandleFunc("GET /order/status/{token}", orderHandler.ViewOrderStatus)
	mux.HandleFunc("POST /order/payment", rateLimiter.Middleware(orderHandler.SubmitPayment))
	mux.HandleFunc("POST /order/cancel", rateLimiter.Middleware(orderHandler.CancelOrder))
	mux.HandleFunc("POST /order/feedback", rateLimiter.Middleware(orderHandler.SubmitFeedback))

	// Admin
	mux.HandleFunc("GET /login", adminHandler.LoginGet)
	mux.HandleFunc("POST /login", adminHandler.LoginPost)
	mux.HandleFunc("/logout", adminHandler.Logout)

	mux.HandleFunc("GET /admin", adminHandler.AuthMiddleware(adminHandler.Dashboard))
	mux.HandleFunc("GET /admin/orders", adminHandler.AuthMiddleware(adminHandler.ListOrders))
	mux.HandleFunc("POST /admin/orders/update", adminHandler.AuthMiddleware(adminHandler.UpdateOrderStatus))
	mux.HandleFunc("POST /admin/orders/assign", adminHandler.AuthMiddleware(adminHandler.AssignRider))
	mux.HandleFunc("POST /admin/orders/done", adminHandler.AuthMiddleware(adminHandler.MarkOrderDone))
	mux.HandleFunc("POST /admin/orders/cancel", adminHandler.AuthMiddleware(adminHandler.CancelOrder))
	mux.HandleFunc("POST /admin/orders/delete", adminHandler.AuthMiddleware(adminHandler.DeleteOrder))

	mux.HandleFunc("GET /admin/riders", adminHandler.AuthMiddleware(adminHandler.ListRiders))
	mux.HandleFunc("POST /admin/riders", adminHandler.AuthMiddleware(adminHandler.CreateRider))
	mux.HandleFunc("POST /admin/riders/update", adminHandler.AuthMiddleware(adminHandler.UpdateRider))
	mux.HandleFunc("POST /admin/riders/delete", adminHandler.AuthMiddleware(adminHandler.DeleteRider))

	mux.HandleFunc("GET /admin/products", adminHandler.AuthMiddleware(adminHandler.ListProducts))
	mux.HandleFunc("GET /admin/products/new", adminHandler.AuthMiddleware(adminHandler.AddProductForm))
	mux.HandleFunc("POST /admin/products", adminHandler.AuthMiddleware(adminHandler.CreateProduct))
	mux.HandleFunc("GET /admin/products/edit", adminHandler.AuthMiddleware(adminHandler.EditProductForm))
	mux.HandleFunc("POST /admin/products/update", adminHandler.AuthMiddleware(adminHandler.UpdateProduct))
	mux.HandleFunc("POST /admin/products/delete", adminHandler.AuthMiddleware(adminHandler.DeleteProduct))

	mux.HandleFunc("GET /admin/payments", adminHandler.AuthMiddleware(adminHandler.ListPayments))
	mux.HandleFunc("POST /admin/payments/verify", adminHandler.AuthMiddleware(adminHandler.VerifyPayment))

	mux.HandleFunc("GET /admin/feedback", adminHandler.AuthMiddleware(adminHandler.ListFeedback))
	mux.HandleFunc("POST /admin/feedback/reply", adminHandler.AuthMiddleware(adminHandler.ReplyToFeedback))

	// Rider app. The JSON API carries a bearer token, so CSRF exempts
	// /api/ below.
	mux.HandleFunc("GET /rider", riderHandler.App)
	mux.HandleFunc("POST /api/rider/login", rateLimiter.Middleware(riderHandler.Login))
	mux.HandleFunc("POST /api/rider/verify", riderHandler.VerifyOTP)
	mux.HandleFunc("GET /api/rider/me", riderHandler.AuthMiddleware(riderHandler.Me))
	mux.HandleFunc("GET /api/rider/orders", riderHandler.AuthMiddleware(riderHandler.ListOrders))
	mux.HandleFunc("POST /api/rider/orders/accept", riderHandler.AuthMiddleware(riderHandler.Accept))
	mux.HandleFunc("POST /api/rider/orders/decline", riderHandler.AuthMiddleware(riderHandler.Decline))
	mux.HandleFunc("POST /api/rider/orders/status", riderHandler.AuthMiddleware(riderHandler.UpdateStatus))
	mux.HandleFunc("POST /api/rider/online", riderHandler.AuthMiddleware(riderHandler.SetOnline))
	mux.HandleFunc("POST /api/rider/location", riderHandler.AuthMiddleware(riderHandler.Location))

	// WebSockets
	mux.HandleFunc("GET /ws/admin", wsHandler.AdminSocket)
	mux.HandleFunc("GET /ws/rider", wsHandler.RiderSocket)
	mux.HandleFunc("GET /ws/track/{token}", wsHandler.TrackSocket)

	// 7. Middleware Setup
	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// Chain: Logger -> Security Headers -> CSRF -> Mux. The rider API
	// and the WebSocket endpoints skip CSRF since neither uses cookies.
	protected := CSRF(mux)
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws/") {
			mux.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
	handler := handlers.LoggingMiddleware(
		handlers.SecurityHeadersMiddleware(root),
	)

	// 8. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop

	slog.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	hub.Stop()

	slog.Info("Server exited gracefully.")
}
