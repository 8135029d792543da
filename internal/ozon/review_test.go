package ozon

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListReviews_DrainsWhileHasNext(t *testing.T) {
	api := newFakeAPI(t)
	api.on(endpointReviewList, func(call int, _ map[string]any) (int, any) {
		pages := []map[string]any{
			{"reviews": []map[string]any{{"id": "r1", "rating": 5}, {"id": "r2", "rating": 4}}, "last_id": "r2", "has_next": true},
			{"reviews": []map[string]any{{"id": "r3", "rating": 1}}, "last_id": "r3", "has_next": true},
			{"reviews": []map[string]any{{"id": "r4", "rating": 3}}, "last_id": "r4", "has_next": false},
		}
		return http.StatusOK, pages[call]
	})
	client := newTestClient(t, api)

	reviews, err := client.ListReviews(context.Background(), "tok", ReviewFilter{Sort: SortDesc, Status: ReviewStatusUnprocessed, Limit: 500})
	require.NoError(t, err)
	require.Len(t, reviews, 4)
	assert.Equal(t, "r4", reviews[3].ID)
	assert.Equal(t, 3, api.count(endpointReviewList))

	first := api.body(endpointReviewList, 0)
	assert.EqualValues(t, 100, first["limit"])
	assert.Equal(t, "DESC", first["sort_dir"])
	assert.Equal(t, "UNPROCESSED", first["status"])
	assert.Equal(t, "r2", api.body(endpointReviewList, 1)["last_id"])
}

func TestClient_ListReviews_Failures(t *testing.T) {
	t.Run("premium message is silent", func(t *testing.T) {
		api := newFakeAPI(t)
		api.on(endpointReviewList, func(int, map[string]any) (int, any) {
			return http.StatusForbidden, map[string]any{"code": 7, "message": "Available for Premium sellers"}
		})
		reviews, err := newTestClient(t, api).ListReviews(context.Background(), "tok", ReviewFilter{Sort: SortAsc, Status: ReviewStatusAll})
		assert.NoError(t, err)
		assert.Empty(t, reviews)
	})

	t.Run("code on success payload is transient", func(t *testing.T) {
		api := newFakeAPI(t)
		api.on(endpointReviewList, func(int, map[string]any) (int, any) {
			return http.StatusOK, map[string]any{"code": 16, "message": "unauthenticated"}
		})
		_, err := newTestClient(t, api).ListReviews(context.Background(), "tok", ReviewFilter{Sort: SortAsc, Status: ReviewStatusAll})
		assert.ErrorIs(t, err, ErrTransient)
	})

	t.Run("status required", func(t *testing.T) {
		api := newFakeAPI(t)
		_, err := newTestClient(t, api).ListReviews(context.Background(), "tok", ReviewFilter{Sort: SortAsc})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestClient_ReviewInfo(t *testing.T) {
	api := newFakeAPI(t)
	api.on(endpointReviewInfo, func(_ int, body map[string]any) (int, any) {
		assert.Equal(t, "r1", body["review_id"])
		return http.StatusOK, map[string]any{
			"id": "r1", "sku": 100500, "rating": 5, "text": "", "order_status": "DELIVERED",
			"published_at": "2024-05-01T10:00:00Z",
			"photos":       []map[string]any{{"url": "https://cdn.example/p1.jpg"}},
		}
	})
	client := newTestClient(t, api)

	info, err := client.ReviewInfo(context.Background(), "tok", "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(100500), info.SKU)
	assert.Equal(t, 5, info.Rating)
	require.Len(t, info.Photos, 1)
	assert.Equal(t, "https://cdn.example/p1.jpg", info.Photos[0].URL)
}

func TestClient_CommentReview(t *testing.T) {
	api := newFakeAPI(t)
	api.on(endpointReviewComment, func(call int, _ map[string]any) (int, any) {
		if call == 1 {
			return http.StatusForbidden, map[string]any{"code": 7, "message": "Premium Plus only"}
		}
		return http.StatusOK, map[string]any{"comment_id": "cm1"}
	})
	client := newTestClient(t, api)
	ctx := context.Background()

	id, err := client.CommentReview(ctx, "tok", ReviewComment{ReviewID: "r1", Text: "Спасибо", MarkProcessed: true})
	require.NoError(t, err)
	assert.Equal(t, "cm1", id)
	body := api.body(endpointReviewComment, 0)
	assert.Equal(t, true, body["mark_review_as_processed"])
	_, hasParent := body["parent_comment_id"]
	assert.False(t, hasParent)

	id, err = client.CommentReview(ctx, "tok", ReviewComment{ReviewID: "r1", Text: "Спасибо"})
	assert.NoError(t, err)
	assert.Empty(t, id)
}
