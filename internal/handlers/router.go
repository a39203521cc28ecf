package handlers

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// Deps is everything the HTTP surface needs. Payments may be nil when no
// realtime backend is configured.
type Deps struct {
	JWTSecret  string
	PublicDir  string
	Carts      *services.CartService
	Orders     *services.OrderService
	Accounts   *services.AccountService
	Products   ProductAdminStore
	Categories CategoryStore
	Uploads    *UploadStorage
	Payments   PaymentWatcher
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if d.PublicDir != "" {
		r.Static("/public", d.PublicDir)
	}

	userAuth := middleware.UserAuth(d.JWTSecret)
	optionalAuth := middleware.OptionalAuth(d.JWTSecret)

	/* === AUTH === */

	auth := r.Group("/auth")
	{
		auth.POST("/register", Register(d.Accounts))
		auth.POST("/verify", VerifyEmail(d.Accounts))
		auth.POST("/resend-code", ResendCode(d.Accounts))
		auth.POST("/login", Login(d.Accounts, d.Carts))
		auth.POST("/refresh", Refresh(d.Accounts))
		auth.POST("/logout", Logout(d.Accounts))
		auth.POST("/forgot-password", ForgotPassword(d.Accounts))
		auth.POST("/reset-password", ResetPassword(d.Accounts))
		auth.GET("/me", userAuth, GetMe(d.Accounts))
	}

	/* === CATALOG === */

	r.GET("/products", GetProducts(d.Products))
	r.GET("/products/:id", GetProduct(d.Products))
	r.GET("/categories", GetCategories(d.Categories))

	/* === CART === */

	cart := r.Group("/cart")
	cart.Use(optionalAuth)
	{
		cart.POST("/session", CreateCartSession(d.Carts))
		cart.GET("", GetCart(d.Carts))
		cart.POST("", AddToCart(d.Carts))
		cart.DELETE("/clear", ClearCart(d.Carts))
		cart.PUT("/:lineId", UpdateCartLine(d.Carts))
		cart.DELETE("/:lineId", RemoveCartLine(d.Carts))
		cart.POST("/merge", userAuth, MergeCart(d.Carts))
	}

	/* === ORDERS === */

	orders := r.Group("/orders")
	orders.Use(userAuth)
	{
		orders.POST("", CreateOrder(d.Orders))
		orders.GET("", GetOrders(d.Orders))
		orders.GET("/:id", GetOrder(d.Orders))
		orders.PUT("/:id/cancel", CancelOrder(d.Orders))
		orders.GET("/:id/payment-events", PaymentEvents(d.Orders, d.Payments))
	}

	/* === USER === */

	user := r.Group("/user")
	user.Use(userAuth)
	{
		user.PUT("/profile", UpdateProfile(d.Accounts))
		user.PUT("/password", ChangePassword(d.Accounts))
		user.GET("/favorites", GetUserFavorites(d.Accounts))
		user.POST("/favorites", AddUserFavorite(d.Accounts))
		user.DELETE("/favorites/:productId", DeleteUserFavorite(d.Accounts))
	}

	/* === ADMIN === */

	r.POST("/admin/login", AdminLogin(d.Accounts))

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(d.JWTSecret))
	{
		admin.GET("/products", GetAllProducts(d.Products))
		admin.POST("/products", CreateProduct(d.Products, d.Categories, d.Uploads))
		admin.PUT("/products/:id", UpdateProduct(d.Products, d.Categories, d.Uploads))
		admin.DELETE("/products/:id", DeleteProduct(d.Products, d.Uploads))

		admin.GET("/categories", GetAllCategories(d.Categories))
		admin.POST("/categories", CreateCategory(d.Categories))
		admin.PUT("/categories/:id", UpdateCategory(d.Categories))
		admin.DELETE("/categories/:id", DeleteCategory(d.Categories))

		admin.GET("/orders", AdminListOrders(d.Orders))
		admin.PUT("/orders/:id/status", AdminUpdateOrderStatus(d.Orders))
		admin.PUT("/orders/:id/payment", AdminUpdatePaymentStatus(d.Orders))
	}

	return r
}
