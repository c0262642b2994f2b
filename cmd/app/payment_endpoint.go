package main

import (
	"net/http"

	"github.com/twelve20/pir-planet-new/internal/services"

	"github.com/labstack/echo/v4"
)

type payRequest struct {
	Token string `json:"token"`
}

func registerPaymentRoutes(g *echo.Group, ps *services.PaymentService) {
	// Start an online payment for an order. Gated by the order's access
	// token, same as the customer status page.
	g.POST("/order/:id/pay", func(c echo.Context) error {
		req := new(payRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		token := req.Token
		if token == "" {
			token = c.QueryParam("token")
		}
		redirectURL, err := ps.CreateSnapPayment(c.Request().Context(), c.Param("id"), token)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"redirect_url": redirectURL})
	})

	// Midtrans server-to-server notification.
	g.POST("/payment/notification", func(c echo.Context) error {
		payload := map[string]interface{}{}
		if err := c.Bind(&payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		if err := ps.HandleNotification(c.Request().Context(), payload); err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
