package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/normalize"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/ozon"
)

func TestReplyTemplates_For(t *testing.T) {
	tpl := ReplyTemplates{High: "high", Average: "avg", Low: "low"}
	tests := map[int]string{5: "high", 4: "avg", 3: "avg", 2: "low", 1: "low", 0: "low"}
	for rating, want := range tests {
		assert.Equal(t, want, tpl.For(rating), "rating %d", rating)
	}
}

func TestReviewService_FiveStarsWithoutTextEndToEnd(t *testing.T) {
	h := newHarness(t)
	info := &ozon.ReviewInfo{ID: "R1", SKU: 555, Rating: 5, OrderStatus: "DELIVERED", PublishedAt: t0}
	h.api.On("ReviewInfo", mock.Anything, "tok-1", "R1").Return(info, nil).Once()
	h.api.On("CommentReview", mock.Anything, "tok-1", ozon.ReviewComment{
		ReviewID:      "R1",
		Text:          DefaultReplyTemplates.High,
		MarkProcessed: true,
	}).Return("c-1", nil).Once()

	reviews := h.reviewService()
	outbound := h.outboundService()
	ctx := context.Background()

	created, err := reviews.Ingest(ctx, ReviewIngestTask{Profile: "p-1", Token: "tok-1", ReviewID: "R1", Rating: 5})
	require.NoError(t, err)
	require.True(t, created)

	ticket := h.tickets.byTicket(t, domain.TicketTypeReview, "R1")
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, normalize.ReviewTitle(5), ticket.Invariable.Title)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, "555", *ticket.Messages[0].External)
	assert.Equal(t, normalize.ReviewAuthorName, ticket.Messages[0].Name)

	autoReplies := h.queue.ofKind(KindReviewReply)
	require.Len(t, autoReplies, 1)
	require.NoError(t, reviews.AutoReply(ctx, autoReplies[0].task.(AutoReplyTask)))

	ticket = h.tickets.byTicket(t, domain.TicketTypeReview, "R1")
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	require.Len(t, ticket.Messages, 2)
	last := ticket.LastMessage()
	assert.Equal(t, normalize.SellerName, last.Name)
	assert.Equal(t, domain.DirectionOutbound, last.Direction)
	assert.Nil(t, last.External)

	replies := h.queue.ofKind(KindReply)
	require.Len(t, replies, 1)
	for _, ch := range outbound.channels {
		require.NoError(t, outbound.Deliver(ctx, ch, replies[0].task.(ReplyTask)))
	}
	h.api.AssertExpectations(t)
	assert.EqualValues(t, 1, h.metrics.Counter(observability.CounterAutoReplies))
}

func TestReviewService_IngestWithText(t *testing.T) {
	h := newHarness(t)
	info := &ozon.ReviewInfo{ID: "R2", SKU: 1, Rating: 3, Text: "Нормально"}
	h.api.On("ReviewInfo", mock.Anything, "tok-1", "R2").Return(info, nil).Once()
	svc := h.reviewService()

	created, err := svc.Ingest(context.Background(), ReviewIngestTask{Token: "tok-1", ReviewID: "R2"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, h.queue.ofKind(KindReviewReply), "rated text reviews are answered by an operator")

	created, err = svc.Ingest(context.Background(), ReviewIngestTask{Token: "tok-1", ReviewID: "R2"})
	require.NoError(t, err)
	assert.False(t, created)
	h.api.AssertNumberOfCalls(t, "ReviewInfo", 1)
}

func TestReviewService_IngestRetriesReviewInfo(t *testing.T) {
	h := newHarness(t)
	h.api.On("ReviewInfo", mock.Anything, "tok-1", "R3").Return(nil, &ozon.APIError{StatusCode: 500})

	created, err := h.reviewService().Ingest(context.Background(), ReviewIngestTask{Token: "tok-1", ReviewID: "R3", Rating: 4})
	require.NoError(t, err)
	assert.False(t, created)

	tasks := h.queue.ofKind(KindReviewIngest)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].task.(ReviewIngestTask).Attempt)
	assert.Equal(t, 10*time.Minute, tasks[0].delay)
}

func TestReviewService_IngestPlanRestrictedIsSilent(t *testing.T) {
	h := newHarness(t)
	h.api.On("ReviewInfo", mock.Anything, "tok-1", "R4").Return(nil, ozon.ErrPlanRestricted).Once()

	created, err := h.reviewService().Ingest(context.Background(), ReviewIngestTask{Token: "tok-1", ReviewID: "R4", Rating: 2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, h.queue.ofKind(KindReviewIngest))
	assert.Zero(t, h.logs.FilterMessage("review info rejected").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("review info restricted by plan").Len())
}

func TestReviewService_AutoReplySkips(t *testing.T) {
	h := newHarness(t)
	svc := h.reviewService()
	closed := closedTicket(t, h, domain.TicketTypeReview, "R1", "1", "done")
	chat := storedChat(t, h, "C1", domain.TicketStatusOpen, "M1")

	require.NoError(t, svc.AutoReply(context.Background(), AutoReplyTask{TicketID: closed.ID, Rating: 5}))
	require.NoError(t, svc.AutoReply(context.Background(), AutoReplyTask{TicketID: chat.ID, Rating: 5}))
	assert.Zero(t, h.tickets.saveCount())

	require.NoError(t, svc.AutoReply(context.Background(), AutoReplyTask{TicketID: "missing", Rating: 5}))
	assert.Equal(t, 1, h.criticalLogs())
}

func TestReviewService_SyncList(t *testing.T) {
	h := newHarness(t)
	filter := ozon.ReviewFilter{Sort: ozon.SortDesc, Status: ozon.ReviewStatusUnprocessed}
	h.api.On("ListReviews", mock.Anything, "tok-1", filter).Return([]ozon.Review{
		{ID: "R1", Rating: 5},
		{ID: "R2", Rating: 2, Text: "Плохо"},
	}, nil)

	require.NoError(t, h.reviewService().SyncList(context.Background(), ReviewListTask{Profile: "p-1", Token: "tok-1"}))

	tasks := h.queue.ofKind(KindReviewIngest)
	require.Len(t, tasks, 2)
	assert.Equal(t, "R2", tasks[1].task.PartitionKey())
	assert.Equal(t, "Плохо", tasks[1].task.(ReviewIngestTask).Text)
}

func TestReviewService_DispatchAllStaggers(t *testing.T) {
	h := newHarness(t, activeToken("tok-1", "p-1"), activeToken("tok-2", "p-2"), activeToken("tok-3", "p-3"))

	require.NoError(t, h.reviewService().DispatchAll(context.Background(), nil))

	tasks := h.queue.ofKind(KindReviewList)
	require.Len(t, tasks, 3)
	for i, d := range tasks {
		assert.Equal(t, time.Duration(i)*5*time.Second, d.delay)
	}
}
