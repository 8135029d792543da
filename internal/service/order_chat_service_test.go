package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
)

func TestOrderChatService_OpenForOrder(t *testing.T) {
	h := newHarness(t)
	h.api.On("StartChat", mock.Anything, "tok-1", "12345678-1234-1").Return("chat-42", nil).Once()
	svc := h.orderChatService()
	notice := OrderNotice{
		Profile:  "p-1",
		Token:    "tok-1",
		Number:   "12345678-1234-1",
		Products: []OrderProduct{{Name: "Чайник", Characteristics: []string{"Цвет: белый"}}},
	}

	ticket, err := svc.OpenForOrder(context.Background(), notice)
	require.NoError(t, err)
	require.NotNil(t, ticket)

	stored := h.tickets.byTicket(t, domain.TicketTypeChat, "chat-42")
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.Equal(t, "Заказ #12345678-1234", stored.Invariable.Title)
	assert.Equal(t, "p-1", *stored.Invariable.ProfileID)
	require.Len(t, stored.Messages, 1)
	msg := stored.Messages[0]
	assert.Equal(t, BotName, msg.Name)
	assert.Nil(t, msg.External)
	assert.True(t, strings.HasPrefix(msg.Body, "Здравствуйте! Спасибо за Ваш заказ #12345678-1234."))
	assert.Contains(t, msg.Body, "Чайник\nЦвет: белый")

	assert.Equal(t, "p-1", h.profiles.indexed["12345678-1234"])
	require.Len(t, h.queue.ofKind(KindReply), 1, "the greeting goes out through the chat channel")

	again, err := svc.OpenForOrder(context.Background(), notice)
	require.NoError(t, err)
	assert.Nil(t, again)
	h.api.AssertNumberOfCalls(t, "StartChat", 1)
}

func TestOrderChatService_SkipsExistingChat(t *testing.T) {
	h := newHarness(t)
	storedChat(t, h, "chat-42", domain.TicketStatusOpen, "M1")
	h.api.On("StartChat", mock.Anything, "tok-1", "87654321-0001").Return("chat-42", nil)

	ticket, err := h.orderChatService().OpenForOrder(context.Background(), OrderNotice{Token: "tok-1", Number: "87654321-0001", Greeting: "hi"})
	require.NoError(t, err)
	assert.Nil(t, ticket)
	assert.Zero(t, h.tickets.saveCount())
}

func TestOrderChatService_RejectsIncompleteNotice(t *testing.T) {
	h := newHarness(t)
	_, err := h.orderChatService().OpenForOrder(context.Background(), OrderNotice{Number: "1"})
	assert.ErrorIs(t, err, ErrInvalidNotice)
}

func TestOrderChatService_SubmitIndexesAndQueues(t *testing.T) {
	h := newHarness(t, domain.Token{ID: "tok-1", ProfileID: "p-9", Active: true})
	svc := h.orderChatService()

	require.NoError(t, svc.Submit(context.Background(), OrderNotice{Token: "tok-1", Number: " 12345678-1234-2 "}))
	assert.Equal(t, "p-9", h.profiles.indexed["12345678-1234"])

	tasks := h.queue.ofKind(KindOrderChat)
	require.Len(t, tasks, 1)
	notice := tasks[0].task.(OrderChatTask).Notice
	assert.Equal(t, "p-9", notice.Profile)
	assert.Equal(t, "12345678-1234-2", notice.Number)
}

func TestOrderChatService_SubmitRejects(t *testing.T) {
	h := newHarness(t)
	svc := h.orderChatService()

	assert.ErrorIs(t, svc.Submit(context.Background(), OrderNotice{Token: "tok-1"}), ErrInvalidNotice)
	assert.ErrorIs(t, svc.Submit(context.Background(), OrderNotice{Token: "missing", Number: "1"}), repository.ErrNotFound)
	assert.ErrorIs(t, svc.IndexOrder(context.Background(), "12345678-1234", ""), ErrInvalidNotice)
	assert.Empty(t, h.queue.ofKind(KindOrderChat))
}

func TestChatService_ResolvesOwnerFromSubmittedOrder(t *testing.T) {
	h := newHarness(t, domain.Token{ID: "tok-1", ProfileID: "p-3", Active: true})
	require.NoError(t, h.orderChatService().Submit(context.Background(), OrderNotice{Token: "tok-1", Number: "12345678-1234"}))

	h.api.On("ChatHistory", mock.Anything, "tok-1", historyRequest("C8")).Return([]ozon.ChatMessage{
		chatMessage("M1", ozon.UserTypeCustomer, t0, "Заказ 12345678-1234-1 не пришел"),
	}, nil)
	_, err := h.chatService().Reconcile(context.Background(), ReconcileChatTask{Token: "tok-1", ChatID: "C8"})
	require.NoError(t, err)

	ticket := h.tickets.byTicket(t, domain.TicketTypeChat, "C8")
	require.NotNil(t, ticket.Invariable.ProfileID)
	assert.Equal(t, "p-3", *ticket.Invariable.ProfileID)
}
