package ozon

import (
	"context"
	"strings"
	"time"
)

const (
	endpointReviewList    = "/v1/review/list"
	endpointReviewInfo    = "/v1/review/info"
	endpointReviewComment = "/v1/review/comment/create"

	minReviewLimit = 20
	maxReviewLimit = 100
)

// Review is one entry of the review list.
type Review struct {
	ID                  string    `json:"id"`
	SKU                 int64     `json:"sku"`
	Text                string    `json:"text"`
	PublishedAt         time.Time `json:"published_at"`
	Rating              int       `json:"rating"`
	Status              string    `json:"status"`
	CommentsAmount      int       `json:"comments_amount"`
	PhotosAmount        int       `json:"photos_amount"`
	VideosAmount        int       `json:"videos_amount"`
	OrderStatus         string    `json:"order_status"`
	IsRatingParticipant bool      `json:"is_rating_participant"`
}

// ReviewPhoto is an image attached to a review.
type ReviewPhoto struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ReviewVideo is a video attached to a review.
type ReviewVideo struct {
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

// ReviewInfo is the detailed view of a review.
type ReviewInfo struct {
	ID          string        `json:"id"`
	SKU         int64         `json:"sku"`
	Rating      int           `json:"rating"`
	Text        string        `json:"text"`
	OrderStatus string        `json:"order_status"`
	PublishedAt time.Time     `json:"published_at"`
	Photos      []ReviewPhoto `json:"photos"`
	Videos      []ReviewVideo `json:"videos"`
}

// ReviewFilter selects reviews to drain. Sort and Status are required.
type ReviewFilter struct {
	Sort   SortDirection
	Status ReviewStatus
	Limit  int
}

type reviewListPayload struct {
	LastID  string        `json:"last_id"`
	Limit   int           `json:"limit"`
	SortDir SortDirection `json:"sort_dir"`
	Status  ReviewStatus  `json:"status"`
}

type reviewListResponse struct {
	Reviews []Review `json:"reviews"`
	LastID  string   `json:"last_id"`
	HasNext bool     `json:"has_next"`
}

// ListReviews follows the cursor while has_next is set.
func (c *Client) ListReviews(ctx context.Context, token string, filter ReviewFilter) ([]Review, error) {
	if filter.Sort == "" {
		return nil, invalidArgument("sort direction is required to list reviews")
	}
	if filter.Status == "" {
		return nil, invalidArgument("status is required to list reviews")
	}
	limit := clampLimit(filter.Limit, maxReviewLimit, maxReviewLimit)
	if limit < minReviewLimit {
		limit = minReviewLimit
	}
	payload := reviewListPayload{Limit: limit, SortDir: filter.Sort, Status: filter.Status}

	var reviews []Review
	for {
		var resp reviewListResponse
		if err := c.post(ctx, token, endpointReviewList, payload, &resp); err != nil {
			return nil, swallowPlan(err)
		}
		reviews = append(reviews, resp.Reviews...)
		if !resp.HasNext || resp.LastID == "" || resp.LastID == payload.LastID {
			break
		}
		payload.LastID = resp.LastID
	}
	return reviews, nil
}

// ReviewInfo fetches one review with its media.
func (c *Client) ReviewInfo(ctx context.Context, token, reviewID string) (*ReviewInfo, error) {
	if strings.TrimSpace(reviewID) == "" {
		return nil, invalidArgument("review id is required")
	}
	var info ReviewInfo
	if err := c.post(ctx, token, endpointReviewInfo, map[string]string{"review_id": reviewID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ReviewComment is a seller comment on a review.
type ReviewComment struct {
	ReviewID        string `json:"review_id"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	Text            string `json:"text"`
	MarkProcessed   bool   `json:"mark_review_as_processed"`
}

type reviewCommentResponse struct {
	CommentID string `json:"comment_id"`
}

// CommentReview posts a comment and returns its id. An empty id with a nil
// error means the seller plan does not allow comments.
func (c *Client) CommentReview(ctx context.Context, token string, comment ReviewComment) (string, error) {
	if strings.TrimSpace(comment.ReviewID) == "" {
		return "", invalidArgument("review id is required to comment")
	}
	if strings.TrimSpace(comment.Text) == "" {
		return "", invalidArgument("text is required to comment")
	}
	var resp reviewCommentResponse
	if err := c.post(ctx, token, endpointReviewComment, comment, &resp); err != nil {
		return "", swallowPlan(err)
	}
	return resp.CommentID, nil
}
