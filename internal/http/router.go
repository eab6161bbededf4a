package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	Cookie         CookieConfig
	MaxUploadSize  int64
	UploadDir      string
}

type Services struct {
	Auth    AuthService
	Catalog CatalogService
	Carts   CartService
	Orders  OrderService
	Limiter Limiter
}

func NewRouter(cfg RouterConfig, svc Services, logger zerolog.Logger) http.Handler {
	authHandler := NewAuthHandler(svc.Auth, cfg.Cookie, cfg.RequestTimeout)
	productHandler := NewProductHandler(svc.Catalog, cfg.RequestTimeout, cfg.MaxUploadSize)
	cartHandler := NewCartHandler(svc.Carts, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(svc.Orders, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(RecoverMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware(svc.Auth, cfg.Cookie.Name))

	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.UploadDir))))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(svc.Limiter, "auth"))
				r.Post("/signup", authHandler.Signup)
				r.Post("/login", authHandler.Login)
				r.Post("/reset", authHandler.RequestPasswordReset)
			})
			r.Post("/logout", authHandler.Logout)
			r.Post("/reset/{token}", authHandler.ResetPassword)
		})

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{id}", productHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Route("/admin/products", func(r chi.Router) {
				r.Get("/", productHandler.ListOwnedProducts)
				r.Post("/", productHandler.CreateProduct)
				r.Put("/{id}", productHandler.UpdateProduct)
				r.Delete("/{id}", productHandler.DeleteProduct)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Post("/", ordersHandler.PlaceOrder)
				r.Get("/{order_id}/invoice", ordersHandler.GetInvoice)
			})
		})
	})

	return r
}
