package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/session"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// Remote is the part of the API client the facade calls directly.
type Remote interface {
	Catalog(ctx context.Context) ([]api.InventoryItem, error)
	RemoteCart(ctx context.Context, token, email string) (*api.RemoteCart, error)
	AddToRemoteCart(ctx context.Context, token, email, itemID string, qty int) error
	RemoveFromRemoteCart(ctx context.Context, token, email, itemID string) error
	AddInventoryItem(ctx context.Context, token string, in api.InventoryInput) error
	UpdateInventoryItem(ctx context.Context, token string, in api.InventoryInput) error
	DeleteInventoryItem(ctx context.Context, token, itemID string) error
}

// Config groups dependencies for the storefront routes.
type Config struct {
	Remote         Remote
	Session        *session.Session
	Cart           *cart.Store
	Checkout       *checkout.Orchestrator
	History        *orders.History
	DeliveryFee    decimal.Decimal
	Logger         *zap.Logger
	SyncRemoteCart bool
}

type storefront struct {
	cfg Config
	v   *validatorv10.Validate
	log *zap.Logger
}

// RegisterRoutes registers the storefront routes under /api.
func RegisterRoutes(r *gin.Engine, cfg Config) {
	s := &storefront{cfg: cfg, v: validation.New(), log: cfg.Logger}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	g := r.Group("/api")
	g.Use(s.syncSession)
	g.GET("/catalog", s.catalog)

	g.GET("/session", s.sessionState)
	g.POST("/session/login", s.login)
	g.POST("/session/register", s.register)
	g.POST("/session/logout", s.logout)

	g.GET("/cart", s.getCart)
	g.POST("/cart/items", s.addItem)
	g.PATCH("/cart/items/:id", s.updateQuantity)
	g.DELETE("/cart/items/:id", s.removeItem)

	g.POST("/checkout", s.checkout)
	g.GET("/orders", s.orders)

	admin := g.Group("/admin/inventory")
	admin.POST("", s.addInventory)
	admin.PUT("/:id", s.updateInventory)
	admin.DELETE("/:id", s.deleteInventory)
}

// syncSession reloads the credential so replicas sharing a store agree on it.
func (s *storefront) syncSession(c *gin.Context) {
	if s.cfg.Session != nil {
		s.cfg.Session.Sync(c.Request.Context())
	}
	c.Next()
}

func (s *storefront) catalog(c *gin.Context) {
	items, err := s.cfg.Remote.Catalog(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *storefront) sessionState(c *gin.Context) {
	sess := s.cfg.Session
	c.JSON(http.StatusOK, gin.H{"state": sess.State().String(), "identity": sess.Identity()})
}

func (s *storefront) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	ctx := c.Request.Context()
	if err := s.cfg.Session.Login(ctx, req.Email, req.Password); err != nil {
		s.fail(c, err)
		return
	}
	s.loadRemoteCart(ctx)
	c.JSON(http.StatusOK, gin.H{"state": s.cfg.Session.State().String(), "identity": s.cfg.Session.Identity()})
}

func (s *storefront) register(c *gin.Context) {
	var req validation.RegisterRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	if err := s.cfg.Session.Register(c.Request.Context(), req.Email, req.Password, req.FullName); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registration successful, please log in"})
}

func (s *storefront) logout(c *gin.Context) {
	if err := s.cfg.Session.Logout(c.Request.Context()); err != nil {
		s.log.Warn("logout did not remove stored credential", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"state": session.Anonymous.String()})
}

func (s *storefront) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.cartView())
}

func (s *storefront) addItem(c *gin.Context) {
	var req validation.AddToCartRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	s.cfg.Cart.Add(cart.LineItem{ItemID: req.ItemID, Name: req.Name, Price: req.Price, ImageURL: req.ImageURL})
	s.syncRemote(c.Request.Context(), func(ctx context.Context, token, email string) error {
		return s.cfg.Remote.AddToRemoteCart(ctx, token, email, req.ItemID, 1)
	})
	c.JSON(http.StatusOK, s.cartView())
}

func (s *storefront) updateQuantity(c *gin.Context) {
	var req validation.UpdateQuantityRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	id := c.Param("id")
	if _, ok := s.cfg.Cart.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"kind": errs.KindValidation, "message": "item not in cart"})
		return
	}
	s.cfg.Cart.UpdateQuantity(id, *req.Quantity)
	c.JSON(http.StatusOK, s.cartView())
}

func (s *storefront) removeItem(c *gin.Context) {
	id := c.Param("id")
	s.cfg.Cart.Remove(id)
	s.syncRemote(c.Request.Context(), func(ctx context.Context, token, email string) error {
		return s.cfg.Remote.RemoveFromRemoteCart(ctx, token, email, id)
	})
	c.JSON(http.StatusOK, s.cartView())
}

func (s *storefront) checkout(c *gin.Context) {
	receipt, err := s.cfg.Checkout.Checkout(c.Request.Context())

	var decErr *checkout.DecrementError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"receipt": receipt})
	case errors.As(err, &decErr):
		c.JSON(http.StatusCreated, gin.H{
			"receipt": receipt,
			"warning": "order placed, some stock updates are pending reconciliation",
		})
	default:
		s.fail(c, err)
	}
}

func (s *storefront) orders(c *gin.Context) {
	list, err := s.cfg.History.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (s *storefront) addInventory(c *gin.Context) {
	s.writeInventory(c, "", s.cfg.Remote.AddInventoryItem, http.StatusCreated)
}

func (s *storefront) updateInventory(c *gin.Context) {
	s.writeInventory(c, c.Param("id"), s.cfg.Remote.UpdateInventoryItem, http.StatusOK)
}

func (s *storefront) writeInventory(c *gin.Context, id string, call func(context.Context, string, api.InventoryInput) error, status int) {
	var req validation.InventoryRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	_, token, err := s.cfg.Session.Credential()
	if err != nil {
		s.fail(c, err)
		return
	}
	in := api.InventoryInput{ID: id, Name: req.Name, Category: req.Category, Price: req.Price, Stock: req.Stock, ImageURL: req.ImageURL}
	if err := call(c.Request.Context(), token, in); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, gin.H{"message": "inventory saved"})
}

func (s *storefront) deleteInventory(c *gin.Context) {
	_, token, err := s.cfg.Session.Credential()
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.cfg.Remote.DeleteInventoryItem(c.Request.Context(), token, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *storefront) cartView() gin.H {
	return gin.H{"items": s.cfg.Cart.Items(), "summary": s.cfg.Cart.Summary(s.cfg.DeliveryFee)}
}

// loadRemoteCart replaces the local cart with the server-side one after login.
func (s *storefront) loadRemoteCart(ctx context.Context) {
	if !s.cfg.SyncRemoteCart {
		return
	}
	id, token, err := s.cfg.Session.Credential()
	if err != nil {
		return
	}
	rc, err := s.cfg.Remote.RemoteCart(ctx, token, id.Email)
	if err != nil {
		s.log.Warn("could not load remote cart", zap.String("email", id.Email), zap.Error(err))
		return
	}
	if len(rc.Items) == 0 {
		return
	}
	items := make([]cart.LineItem, 0, len(rc.Items))
	for _, l := range rc.Items {
		items = append(items, cart.LineItem{ItemID: l.ItemID.String(), Name: l.Name, Price: l.Price, Quantity: l.Quantity, ImageURL: l.ImageURL})
	}
	s.cfg.Cart.Replace(items)
}

// syncRemote mirrors a local cart change to the server when signed in. Failures are logged only.
func (s *storefront) syncRemote(ctx context.Context, fn func(ctx context.Context, token, email string) error) {
	if !s.cfg.SyncRemoteCart {
		return
	}
	id, token, err := s.cfg.Session.Credential()
	if err != nil {
		return
	}
	if err := fn(ctx, token, id.Email); err != nil {
		s.log.Warn("remote cart sync failed", zap.String("email", id.Email), zap.Error(err))
	}
}

func (s *storefront) fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	body := gin.H{"message": err.Error()}

	var stockErr *checkout.StockError
	var apiErr *errs.Error
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		status = http.StatusBadRequest
		body = gin.H{"kind": errs.KindValidation, "message": err.Error()}
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		status = http.StatusConflict
		body = gin.H{"kind": errs.KindValidation, "message": err.Error()}
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		body = gin.H{"kind": errs.KindValidation, "message": stockErr.Message, "itemId": stockErr.ItemID, "itemName": stockErr.ItemName}
	case errors.As(err, &apiErr):
		body = gin.H{"kind": apiErr.Kind, "message": apiErr.Message}
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}
