package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/normalize"
	"github.com/sellerdesk/ozon-support/internal/ozon"
)

func TestQuestionService_Sync(t *testing.T) {
	h := newHarness(t)
	questions := []ozon.Question{
		{ID: "Q1", AuthorName: "Иван", Text: "Есть в наличии?", SKU: 111, PublishedAt: t0},
		{ID: "Q2", AuthorName: "Мария", Text: "Какой размер?", SKU: 222, PublishedAt: t0},
	}
	filter := ozon.QuestionFilter{Status: ozon.QuestionStatusNew}
	h.api.On("ListQuestions", mock.Anything, "tok-1", filter).Return(questions, nil)
	h.api.On("MarkQuestionsViewed", mock.Anything, "tok-1", []string{"Q1", "Q2"}).Return(nil).Once()
	svc := h.questionService()
	task := QuestionSyncTask{Profile: "p-1", Token: "tok-1"}

	n, err := svc.Sync(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ticket := h.tickets.byTicket(t, domain.TicketTypeQuestion, "Q1")
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, normalize.DefaultQuestionTitle, ticket.Invariable.Title)
	assert.Equal(t, "p-1", *ticket.Invariable.ProfileID)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, "111", *ticket.Messages[0].External)
	assert.Equal(t, "Иван", ticket.Messages[0].Name)
	assert.Contains(t, ticket.Messages[0].Body, "Есть в наличии?")

	n, err = svc.Sync(context.Background(), task)
	require.NoError(t, err)
	assert.Zero(t, n, "the guard is released and questions are deduplicated")
	h.api.AssertNumberOfCalls(t, "ListQuestions", 2)
	h.api.AssertNumberOfCalls(t, "MarkQuestionsViewed", 1)
}

func TestQuestionService_GuardSkipsConcurrentRun(t *testing.T) {
	h := newHarness(t)
	svc := h.questionService()
	require.NoError(t, svc.guard.Deduplication("p-1", dedupQuestionSync).Save(context.Background()))

	n, err := svc.Sync(context.Background(), QuestionSyncTask{Profile: "p-1", Token: "tok-1"})
	require.NoError(t, err)
	assert.Zero(t, n)
	h.api.AssertNotCalled(t, "ListQuestions", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuestionService_DispatchAllForProfile(t *testing.T) {
	h := newHarness(t, activeToken("tok-1", "p-1"), activeToken("tok-2", "p-2"))

	require.NoError(t, h.questionService().DispatchAll(context.Background(), strPtr("p-2")))

	tasks := h.queue.ofKind(KindQuestionSync)
	require.Len(t, tasks, 1)
	assert.Equal(t, QuestionSyncTask{Profile: "p-2", Token: "tok-2"}, tasks[0].task)
}
