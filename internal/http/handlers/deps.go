package handlers

import (
	"github.com/jmoiron/sqlx"

	"satchel/internal/config"
	"satchel/internal/jwtutil"
	"satchel/internal/metrics"
	"satchel/internal/repos"
	"satchel/internal/services"
)

type Deps struct {
	Auth       *services.AuthService
	JWT        *jwtutil.JWTUtil
	Metrics    *metrics.Metrics
	Reconciler *services.CartReconciler

	AuthHandler      *AuthHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	SearchHandler    *SearchHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, m *metrics.Metrics) *Deps {
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	ledgerRepo := repos.NewLedgerRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)

	jwt := jwtutil.New(cfg.JWTSigningKey, cfg.JWTExpiration)
	authSvc := services.NewAuthService(userRepo, jwt)
	catalogSvc := services.NewCatalogService(catRepo, prodRepo)
	invSvc := services.NewInventoryService(invRepo, ledgerRepo, m, cfg.LowStockThreshold)
	cartSvc := services.NewCartService(cartRepo, prodRepo)
	comp := services.NewCompensator(invSvc, m)
	orderSvc := services.NewOrderService(prodRepo, orderRepo, invSvc, comp, m)
	reconciler := services.NewCartReconciler(cartSvc, cfg.CartSyncTimeout, m)

	return &Deps{
		Auth:       authSvc,
		JWT:        jwt,
		Metrics:    m,
		Reconciler: reconciler,

		AuthHandler:      &AuthHandler{Auth: authSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, LowStock: invSvc.LowStock},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		SearchHandler:    &SearchHandler{Catalog: catalogSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		OrderHandler:     &OrderHandler{Cart: cartSvc, Order: orderSvc, Reconciler: reconciler},
		AdminHandler:     &AdminHandler{Orders: orderSvc, Inv: invSvc, Catalog: catalogSvc},
	}
}
