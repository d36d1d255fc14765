package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

type fakeServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeServer(t *testing.T, register func(r *gin.Engine)) *fakeServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs := &fakeServer{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		fs.hits.Add(1)
		c.Next()
	})
	register(r)
	fs.Server = httptest.NewServer(r)
	t.Cleanup(fs.Close)
	return fs
}

func TestLogin_ReturnsToken(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/auth/login", func(c *gin.Context) {
			var body map[string]string
			require.NoError(t, c.ShouldBindJSON(&body))
			assert.Equal(t, "ann@example.com", body["email"])
			assert.Empty(t, c.GetHeader("Authorization"))
			c.JSON(http.StatusOK, gin.H{"token": "tok-1"})
		})
	})

	token, err := New(srv.URL).Login(context.Background(), "ann@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestLogin_Unauthorized(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/auth/login", func(c *gin.Context) {
			c.String(http.StatusUnauthorized, "Invalid credentials")
		})
	})

	_, err := New(srv.URL).Login(context.Background(), "ann@example.com", "bad")
	require.Error(t, err)
	assert.True(t, IsKind(err, errs.KindAuthentication))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Invalid credentials", e.Message)
}

func TestLogin_MissingTokenIsValidationError(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"jwt": "x"})
		})
	})

	_, err := New(srv.URL).Login(context.Background(), "ann@example.com", "pw")
	assert.True(t, IsKind(err, errs.KindValidation))
}

func TestEmailExists(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/auth/check-email", func(c *gin.Context) {
			c.JSON(http.StatusOK, c.Query("email") == "taken@example.com")
		})
	})
	c := New(srv.URL)

	exists, err := c.EmailExists(context.Background(), "taken@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.EmailExists(context.Background(), "free@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuthenticatedCallWithoutTokenNeverHitsNetwork(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/inventory/check-stock/:id/:qty", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.PUT("/api/inventory/update-stock", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.POST("/api/order/checkout", func(c *gin.Context) { c.Status(http.StatusOK) })
	})
	c := New(srv.URL)
	ctx := context.Background()

	assert.True(t, IsKind(c.CheckStock(ctx, "", "A", 1), errs.KindAuthentication))
	assert.True(t, IsKind(c.UpdateStock(ctx, "", "A", 1), errs.KindAuthentication))
	_, err := c.PlaceOrder(ctx, "", "k", OrderRequest{})
	assert.True(t, IsKind(err, errs.KindAuthentication))
	_, err = c.UserOrders(ctx, "", "ann@example.com")
	assert.True(t, IsKind(err, errs.KindAuthentication))

	assert.Zero(t, srv.hits.Load())
}

func TestCheckStock_InsufficientIsValidation(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/inventory/check-stock/:id/:qty", func(c *gin.Context) {
			assert.Equal(t, "Bearer tok", c.GetHeader("Authorization"))
			if c.Param("qty") == "5" {
				c.String(http.StatusBadRequest, "Insufficient stock for item: "+c.Param("id"))
				return
			}
			c.String(http.StatusOK, "Stock available")
		})
	})
	c := New(srv.URL)

	require.NoError(t, c.CheckStock(context.Background(), "tok", "A", 2))

	err := c.CheckStock(context.Background(), "tok", "A", 5)
	require.Error(t, err)
	assert.True(t, IsKind(err, errs.KindValidation))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Insufficient stock for item: A", e.Message)
	assert.Equal(t, http.StatusBadRequest, e.Status)
}

func TestForbiddenAndServerErrors(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/order/user/:email", func(c *gin.Context) {
			c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
		})
		r.PUT("/api/inventory/update-stock", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})
	})
	c := New(srv.URL)

	_, err := c.UserOrders(context.Background(), "tok", "ann@example.com")
	assert.True(t, IsKind(err, errs.KindAuthorization))

	err = c.UpdateStock(context.Background(), "tok", "A", 1)
	assert.True(t, IsKind(err, errs.KindRemote))
	assert.Equal(t, http.StatusInternalServerError, errs.HTTPStatus(err))
}

func TestNetworkError(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {})
	url := srv.URL
	srv.Close()

	_, err := New(url).Catalog(context.Background())
	assert.True(t, IsKind(err, errs.KindNetwork))
}

func TestUpdateStock_Body(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.PUT("/api/inventory/update-stock", func(c *gin.Context) {
			var body struct {
				ItemID            string `json:"itemId"`
				QuantityPurchased int    `json:"quantityPurchased"`
			}
			require.NoError(t, c.ShouldBindJSON(&body))
			assert.Equal(t, "B", body.ItemID)
			assert.Equal(t, 3, body.QuantityPurchased)
			c.String(http.StatusOK, "Stock updated")
		})
	})

	require.NoError(t, New(srv.URL).UpdateStock(context.Background(), "tok", "B", 3))
}

func TestCatalog_DecodesAndValidates(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/inventory/all", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`[
				{"id": 7, "name": "Dal Makhani", "category": "Main", "price": 180.5, "stock": 12, "imageUrl": "d.png"},
				{"id": "b-2", "name": "Naan", "category": "Bread", "price": "30", "stock": 0}
			]`))
		})
	})

	items, err := New(srv.URL).Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ID("7"), items[0].ID)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("180.5")))
	assert.Equal(t, ID("b-2"), items[1].ID)
}

func TestCatalog_RejectsMalformedItems(t *testing.T) {
	cases := map[string]string{
		"negative stock": `[{"id": 1, "name": "X", "price": 1, "stock": -1}]`,
		"negative price": `[{"id": 1, "name": "X", "price": -1, "stock": 1}]`,
		"missing name":   `[{"id": 1, "price": 1, "stock": 1}]`,
		"not an array":   `{"id": 1}`,
		"empty body":     ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newFakeServer(t, func(r *gin.Engine) {
				r.GET("/api/inventory/all", func(c *gin.Context) {
					c.Data(http.StatusOK, "application/json", []byte(body))
				})
			})
			items, err := New(srv.URL).Catalog(context.Background())
			assert.Nil(t, items)
			assert.True(t, IsKind(err, errs.KindValidation), "got %v", err)
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/order/checkout", func(c *gin.Context) {
			assert.Equal(t, "key-1", c.GetHeader(IdempotencyHeader))
			var body struct {
				UserEmail   string   `json:"userEmail"`
				ItemIDs     []string `json:"itemIds"`
				TotalAmount float64  `json:"totalAmount"`
			}
			require.NoError(t, c.ShouldBindJSON(&body))
			assert.Equal(t, []string{"A", "B"}, body.ItemIDs)
			assert.Equal(t, 250.0, body.TotalAmount)
			c.JSON(http.StatusOK, gin.H{
				"id":          101,
				"userEmail":   body.UserEmail,
				"itemIds":     body.ItemIDs,
				"totalAmount": body.TotalAmount,
				"status":      "PENDING",
				"orderDate":   "2024-05-01T12:30:00",
			})
		})
	})

	o, err := New(srv.URL).PlaceOrder(context.Background(), "tok", "key-1", OrderRequest{
		UserEmail:   "ann@example.com",
		ItemIDs:     []string{"A", "B"},
		TotalAmount: decimal.NewFromInt(250),
	})
	require.NoError(t, err)
	assert.Equal(t, "101", o.ID)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, 2, o.DistinctItems())
	assert.Equal(t, 2024, o.OrderDate.Year())
}

func TestPlaceOrder_UnreadableSuccessBody(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/order/checkout", func(c *gin.Context) {
			c.String(http.StatusOK, "Order placed")
		})
	})

	o, err := New(srv.URL).PlaceOrder(context.Background(), "tok", "", OrderRequest{
		UserEmail:   "ann@example.com",
		ItemIDs:     []string{"A"},
		TotalAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Empty(t, o.ID)
	assert.Equal(t, "ann@example.com", o.UserEmail)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestUserOrders_LegacyLines(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/order/user/:email", func(c *gin.Context) {
			assert.Equal(t, "ann@example.com", c.Param("email"))
			c.Data(http.StatusOK, "application/json", []byte(`[
				{"id": "o1", "userEmail": "ann@example.com", "itemIds": ["A|Paneer Tikka|120|p.png", "B"],
				 "totalAmount": 150, "status": "Completed", "orderDate": 1714566600000}
			]`))
		})
	})

	list, err := New(srv.URL).UserOrders(context.Background(), "tok", "ann@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	o := list[0]
	assert.Equal(t, orders.StatusCompleted, o.Status)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Paneer Tikka", o.Lines[0].Name)
	assert.True(t, o.Lines[0].Price.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "B", o.Lines[1].ItemID)
	assert.False(t, o.OrderDate.IsZero())
}

func TestPlaceOrder_UnknownStatusIsPending(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.POST("/api/order/checkout", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"id": 101, "itemIds": []string{"A"}, "totalAmount": 10, "status": "PROCESSING"})
		})
	})

	o, err := New(srv.URL).PlaceOrder(context.Background(), "tok", "key-1", OrderRequest{
		UserEmail:   "ann@example.com",
		ItemIDs:     []string{"A"},
		TotalAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "101", o.ID)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestUserOrders_UnknownStatusKeepsHistory(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/order/user/:email", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`[
				{"id": "o1", "itemIds": ["A"], "totalAmount": 10, "status": "SHIPPED"},
				{"id": "o2", "itemIds": ["B"], "totalAmount": 20, "status": "REJECTED"}
			]`))
		})
	})

	list, err := New(srv.URL).UserOrders(context.Background(), "tok", "ann@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, orders.StatusPending, list[0].Status)
	assert.Equal(t, orders.StatusRejected, list[1].Status)
}

func TestRemoteCart(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/cart/user/:email", func(c *gin.Context) {
			assert.Equal(t, "ann@example.com", c.Param("email"))
			c.Data(http.StatusOK, "application/json", []byte(`{"items": [
				{"itemId": "A", "name": "Paneer Tikka", "price": 120, "quantity": 2}
			]}`))
		})
		r.POST("/api/cart/add/:email", func(c *gin.Context) {
			assert.Equal(t, "ann@example.com", c.Param("email"))
			var body cartAdd
			require.NoError(t, c.ShouldBindJSON(&body))
			assert.Equal(t, "A", body.ItemID)
			c.Status(http.StatusOK)
		})
		r.DELETE("/api/cart/remove/:email/:id", func(c *gin.Context) {
			assert.Equal(t, "ann@example.com", c.Param("email"))
			assert.Equal(t, "A", c.Param("id"))
			c.Status(http.StatusNoContent)
		})
	})
	c := New(srv.URL)
	ctx := context.Background()

	rc, err := c.RemoteCart(ctx, "tok", "ann@example.com")
	require.NoError(t, err)
	require.Len(t, rc.Items, 1)
	assert.Equal(t, 2, rc.Items[0].Quantity)

	require.NoError(t, c.AddToRemoteCart(ctx, "tok", "ann@example.com", "A", 1))
	require.NoError(t, c.RemoveFromRemoteCart(ctx, "tok", "ann@example.com", "A"))
}

func TestRemoteCart_ZeroQuantityRejected(t *testing.T) {
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.GET("/api/cart/user/:email", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`{"items": [{"itemId": "A", "price": 1, "quantity": 0}]}`))
		})
	})

	_, err := New(srv.URL).RemoteCart(context.Background(), "tok", "ann@example.com")
	assert.True(t, IsKind(err, errs.KindValidation))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", errorMessage([]byte(`{"message":"nope"}`)))
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "quoted", errorMessage([]byte(`"quoted"`)))
	assert.Equal(t, "plain text", errorMessage([]byte(" plain text \n")))
	assert.Empty(t, errorMessage(nil))
}

func TestRemoteCart_Paths(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := newFakeServer(t, func(r *gin.Engine) {
		r.NoRoute(func(c *gin.Context) {
			mu.Lock()
			seen = append(seen, c.Request.Method+" "+c.Request.URL.Path)
			mu.Unlock()
			c.Data(http.StatusOK, "application/json", []byte(`{"items": []}`))
		})
	})
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.RemoteCart(ctx, "tok", "a@b.co")
	require.NoError(t, err)
	require.NoError(t, c.AddToRemoteCart(ctx, "tok", "a@b.co", "A", 1))
	require.NoError(t, c.RemoveFromRemoteCart(ctx, "tok", "a@b.co", "A"))

	assert.Equal(t, []string{
		"GET /api/cart/user/a@b.co",
		"POST /api/cart/add/a@b.co",
		"DELETE /api/cart/remove/a@b.co/A",
	}, seen)
}
