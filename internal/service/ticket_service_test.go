package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
)

func TestTicketService_Reply(t *testing.T) {
	h := newHarness(t)
	ticket := storedChat(t, h, "C1", domain.TicketStatusOpen, "M1")
	svc := h.ticketService()
	operator := &domain.Operator{ID: "op-1", Name: "Анна", Email: "anna@example.com"}

	_, err := svc.Reply(context.Background(), ticket.ID, operator, "   ")
	assert.ErrorIs(t, err, ErrEmptyReply)

	updated, err := svc.Reply(context.Background(), ticket.ID, operator, "Да, <есть>\nв наличии")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	last := updated.LastMessage()
	assert.Equal(t, "Анна", last.Name)
	assert.Equal(t, "Да, &lt;есть&gt;<br>в наличии", last.Body)
	assert.Nil(t, last.External)

	tasks := h.queue.ofKind(KindReply)
	require.Len(t, tasks, 1)
	assert.Equal(t, ticket.ID, tasks[0].task.(ReplyTask).TicketID)
}

func TestTicketService_ReplyConflict(t *testing.T) {
	h := newHarness(t)
	ticket := storedChat(t, h, "C1", domain.TicketStatusOpen, "M1")
	h.tickets.conflict = 1

	_, err := h.ticketService().Reply(context.Background(), ticket.ID, &domain.Operator{ID: "op-1"}, "hello")
	assert.ErrorIs(t, err, ErrTicketBusy)
}

func TestTicketService_SendFile(t *testing.T) {
	h := newHarness(t)
	chat := storedChat(t, h, "C1", domain.TicketStatusOpen, "M1")
	review := closedTicket(t, h, domain.TicketTypeReview, "R1", "1", "ok")
	h.api.On("SendFile", mock.Anything, "tok-1", "C1", "photo.jpg", []byte("raw")).Return(nil).Once()
	svc := h.ticketService()

	require.NoError(t, svc.SendFile(context.Background(), chat.ID, "photo.jpg", []byte("raw")))
	assert.ErrorIs(t, svc.SendFile(context.Background(), review.ID, "photo.jpg", []byte("raw")), ErrNotChat)
	assert.ErrorIs(t, svc.SendFile(context.Background(), "missing", "photo.jpg", nil), repository.ErrNotFound)
	h.api.AssertExpectations(t)
}

func TestTicketService_DownloadFile(t *testing.T) {
	inactive := activeToken("tok-2", "p-1")
	inactive.Active = false
	h := newHarness(t, activeToken("tok-1", "p-1"), inactive)
	file := &ozon.File{Body: io.NopCloser(strings.NewReader("bytes")), ContentLength: 5}
	h.api.On("DownloadFile", mock.Anything, "tok-1", "a.png").Return(file, nil)
	svc := h.ticketService()

	got, err := svc.DownloadFile(context.Background(), "tok-1", "a.png")
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.ContentLength)

	_, err = svc.DownloadFile(context.Background(), "tok-2", "a.png")
	assert.ErrorIs(t, err, ozon.ErrUnknownToken)
	_, err = svc.DownloadFile(context.Background(), "tok-9", "a.png")
	assert.ErrorIs(t, err, ozon.ErrUnknownToken)
}

func TestTicketService_List(t *testing.T) {
	h := newHarness(t)
	storedChat(t, h, "C1", domain.TicketStatusOpen, "M1")
	closedTicket(t, h, domain.TicketTypeReview, "R1", "1", "ok")

	tickets, err := h.ticketService().List(context.Background(), TicketListFilter{Types: []domain.TicketType{domain.TicketTypeReview}})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "R1", tickets[0].Invariable.Ticket)
}
