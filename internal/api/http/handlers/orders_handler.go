package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sellerdesk/ozon-support/internal/api/dto"
	"github.com/sellerdesk/ozon-support/internal/service"
)

// OrderOperations receives orders from the order system.
type OrderOperations interface {
	Submit(ctx context.Context, notice service.OrderNotice) error
	IndexOrder(ctx context.Context, number, profileID string) error
}

// OrdersHandler exposes the order intake endpoints.
type OrdersHandler struct {
	orders OrderOperations
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orders OrderOperations) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// OpenChat handles POST /admin/ozon-support/orders. The chat is opened in
// the background.
func (h *OrdersHandler) OpenChat(c *fiber.Ctx) error {
	var req dto.OrderChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	notice := service.OrderNotice{
		Profile:  req.Profile,
		Token:    req.Token,
		Number:   req.Number,
		Greeting: req.Greeting,
	}
	for _, p := range req.Products {
		notice.Products = append(notice.Products, service.OrderProduct{Name: p.Name, Characteristics: p.Characteristics})
	}
	if err := h.orders.Submit(c.UserContext(), notice); err != nil {
		return mapServiceError(err, "token")
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"number": req.Number}})
}

// IndexOrder handles PUT /admin/ozon-support/orders/index.
func (h *OrdersHandler) IndexOrder(c *fiber.Ctx) error {
	var req dto.OrderIndexRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.orders.IndexOrder(c.UserContext(), req.Number, req.Profile); err != nil {
		return mapServiceError(err, "order")
	}
	return c.SendStatus(http.StatusNoContent)
}
