package main

import (
	"net/http"
	"strconv"

	"github.com/twelve20/pir-planet-new/internal/middleware"
	"github.com/twelve20/pir-planet-new/internal/model"
	"github.com/twelve20/pir-planet-new/internal/services"

	"github.com/labstack/echo/v4"
)

type updateStatusRequest struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

type updateDeliveryRequest struct {
	DeliveryCost float64 `json:"deliveryCost"`
	Comment      *string `json:"comment"`
}

type managerCommentRequest struct {
	Comment string `json:"comment"`
}

type replaceItemsRequest struct {
	Items []model.ItemInput `json:"items"`
}

func registerOrderRoutes(g *echo.Group, os *services.OrderService) {
	admin := []echo.MiddlewareFunc{middleware.JWTMiddleware(), middleware.AdminOnly}

	// CREATE (checkout page, public)
	g.POST("/create-order", func(c echo.Context) error {
		req := new(model.NewOrder)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		result, err := os.Create(c.Request().Context(), *req)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"success":     true,
			"orderId":     result.OrderID,
			"orderNumber": result.OrderNumber,
			"accessToken": result.AccessToken,
		})
	})

	// GET order (customer status page, gated by the access token)
	g.GET("/order/:id", func(c echo.Context) error {
		order, err := os.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		if err := os.VerifyAccess(order, c.QueryParam("token")); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, order)
	})

	// GET order (admin panel, no token needed)
	g.GET("/admin/order/:id", func(c echo.Context) error {
		order, err := os.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, order)
	}, admin...)

	// LIST
	g.GET("/orders", func(c echo.Context) error {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))
		orders, err := os.List(c.Request().Context(), limit, offset)
		if err != nil {
			return errorJSON(c, err)
		}
		if orders == nil {
			orders = []model.Order{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders})
	}, admin...)

	// STATS
	g.GET("/orders/stats", func(c echo.Context) error {
		stats, err := os.Stats(c.Request().Context())
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}, admin...)

	// UPDATE status
	g.POST("/order/:id/status", func(c echo.Context) error {
		req := new(updateStatusRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := os.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status, req.Comment); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// UPDATE delivery cost
	g.POST("/order/:id/delivery", func(c echo.Context) error {
		req := new(updateDeliveryRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := os.UpdateDeliveryCost(c.Request().Context(), c.Param("id"), req.DeliveryCost, req.Comment); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// UPDATE manager comment
	g.POST("/order/:id/comment", func(c echo.Context) error {
		req := new(managerCommentRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := os.SetManagerComment(c.Request().Context(), c.Param("id"), req.Comment); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// REPLACE items (full replace, the admin editor saves the whole set)
	g.PUT("/order/:id/items", func(c echo.Context) error {
		req := new(replaceItemsRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := os.ReplaceItems(c.Request().Context(), c.Param("id"), req.Items); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// ADD item
	g.POST("/order/:id/items", func(c echo.Context) error {
		req := new(model.ItemInput)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		itemID, err := os.AddItem(c.Request().Context(), c.Param("id"), *req)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "itemId": itemID})
	}, admin...)

	// UPDATE item
	g.PUT("/order/:id/items/:itemId", func(c echo.Context) error {
		itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		}
		req := new(model.ItemInput)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := os.UpdateItem(c.Request().Context(), c.Param("id"), itemID, *req); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// DELETE item
	g.DELETE("/order/:id/items/:itemId", func(c echo.Context) error {
		itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		}
		if err := os.DeleteItem(c.Request().Context(), c.Param("id"), itemID); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}, admin...)

	// DELETE order
	g.DELETE("/order/:id", func(c echo.Context) error {
		deleted, err := os.Delete(c.Request().Context(), c.Param("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": deleted})
	}, admin...)
}
