package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sellerdesk/ozon-support/internal/api/dto"
	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxUploadBytes  = 10 << 20
)

// TicketOperations is the operator surface the ticket routes call.
type TicketOperations interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
	DeadLetters(ctx context.Context, id string) ([]domain.DeadLetter, error)
	Reply(ctx context.Context, id string, operator *domain.Operator, body string) (*domain.Ticket, error)
	SendFile(ctx context.Context, id, name string, content []byte) error
	DownloadFile(ctx context.Context, account, name string) (*ozon.File, error)
}

// TicketsHandler exposes operator ticket endpoints.
type TicketsHandler struct {
	tickets TicketOperations
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketOperations) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// ListTickets handles GET /admin/ozon-support/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query := parseTicketQuery(c)
	list, err := h.tickets.List(c.UserContext(), service.TicketListFilter{
		Types:      query.Types,
		Statuses:   query.Statuses,
		ProfileID:  query.ProfileID,
		SearchTerm: query.SearchTerm,
		Limit:      query.PageSize,
		Offset:     (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return mapServiceError(err, "ticket")
	}

	resp := make([]dto.TicketSummary, 0, len(list))
	for i := range list {
		resp = append(resp, ticketSummary(&list[i]))
	}
	return c.JSON(fiber.Map{
		"data": resp,
		"meta": fiber.Map{"page": query.Page, "page_size": query.PageSize},
	})
}

// GetTicket handles GET /admin/ozon-support/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapServiceError(err, "ticket")
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Reply handles POST /admin/ozon-support/tickets/:id/reply.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Reply(c.UserContext(), c.Params("id"), principal.Operator, req.Body)
	if err != nil {
		return mapServiceError(err, "ticket")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// SendFile handles POST /admin/ozon-support/tickets/:id/files.
func (h *TicketsHandler) SendFile(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "file is required")
	}
	if header.Size > maxUploadBytes {
		return fiber.NewError(http.StatusRequestEntityTooLarge, "file too large")
	}

	f, err := header.Open()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "unreadable file")
	}

	if err := h.tickets.SendFile(c.UserContext(), c.Params("id"), header.Filename, content); err != nil {
		return mapServiceError(err, "ticket")
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "sent"}})
}

// DeadLetters handles GET /admin/ozon-support/tickets/:id/dead-letters.
func (h *TicketsHandler) DeadLetters(c *fiber.Ctx) error {
	letters, err := h.tickets.DeadLetters(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapServiceError(err, "ticket")
	}
	resp := make([]dto.DeadLetterResponse, 0, len(letters))
	for _, l := range letters {
		resp = append(resp, dto.DeadLetterResponse{
			ID:        l.ID,
			Channel:   l.Channel,
			Attempts:  l.Attempts,
			LastError: l.LastError,
			CreatedAt: l.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), defaultPageSize),
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	for _, raw := range splitList(c.Query("types")) {
		if t := domain.TicketType(raw); t.Valid() {
			query.Types = append(query.Types, t)
		}
	}
	for _, raw := range splitList(c.Query("status")) {
		switch s := domain.TicketStatus(strings.ToUpper(raw)); s {
		case domain.TicketStatusOpen, domain.TicketStatusClosed:
			query.Statuses = append(query.Statuses, s)
		}
	}
	if profile := strings.TrimSpace(c.Query("profile")); profile != "" {
		query.ProfileID = &profile
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.SearchTerm = &search
	}
	return query
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:        ticket.ID,
		Ticket:    ticket.Invariable.Ticket,
		Type:      ticket.Invariable.Type,
		Title:     ticket.Invariable.Title,
		ProfileID: ticket.Invariable.ProfileID,
		Status:    ticket.Status,
		Priority:  ticket.Priority,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetail {
	messages := make([]dto.MessageResponse, 0, len(ticket.Messages))
	for _, msg := range ticket.Messages {
		messages = append(messages, dto.MessageResponse{
			ID:        msg.ID,
			Name:      msg.Name,
			Body:      msg.Body,
			Direction: msg.Direction,
			External:  msg.External,
			CreatedAt: msg.CreatedAt,
		})
	}
	return dto.TicketDetail{
		TicketSummary: ticketSummary(ticket),
		TokenID:       ticket.Invariable.TokenID,
		Messages:      messages,
	}
}
