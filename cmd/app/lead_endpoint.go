package main

import (
	"net/http"

	"github.com/twelve20/pir-planet-new/internal/model"
	"github.com/twelve20/pir-planet-new/internal/services"

	"github.com/labstack/echo/v4"
)

func registerLeadRoutes(g *echo.Group, ls *services.LeadService) {
	// Contact form on the landing pages. Nothing is stored, the lead is
	// forwarded to the manager chat.
	g.POST("/send-order", func(c echo.Context) error {
		req := new(model.Lead)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		sent, err := ls.Submit(c.Request().Context(), *req)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":      true,
			"message":      "Заявка успешно отправлена",
			"telegramSent": sent,
		})
	})
}
