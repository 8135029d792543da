package service

import (
	"context"

	"github.com/sellerdesk/ozon-support/internal/ozon"
)

// ChatAPI is the chat part of the marketplace client.
type ChatAPI interface {
	ListChats(ctx context.Context, token string, req ozon.ChatListRequest) (ozon.ChatPage, error)
	ChatHistory(ctx context.Context, token string, req ozon.ChatHistoryRequest) ([]ozon.ChatMessage, error)
	SendMessage(ctx context.Context, token, chatID, text string) error
	SendFile(ctx context.Context, token, chatID, name string, content []byte) error
	MarkRead(ctx context.Context, token, chatID string, fromMessageID ozon.ID) error
	StartChat(ctx context.Context, token, postingNumber string) (string, error)
	DownloadFile(ctx context.Context, token, name string) (*ozon.File, error)
}

// QuestionAPI is the product question part of the marketplace client.
type QuestionAPI interface {
	ListQuestions(ctx context.Context, token string, filter ozon.QuestionFilter) ([]ozon.Question, error)
	AnswerQuestion(ctx context.Context, token, questionID string, sku int64, text string) error
	MarkQuestionsViewed(ctx context.Context, token string, ids []string) error
}

// ReviewAPI is the review part of the marketplace client.
type ReviewAPI interface {
	ListReviews(ctx context.Context, token string, filter ozon.ReviewFilter) ([]ozon.Review, error)
	ReviewInfo(ctx context.Context, token, reviewID string) (*ozon.ReviewInfo, error)
	CommentReview(ctx context.Context, token string, comment ozon.ReviewComment) (string, error)
}

// MarketplaceAPI is the whole marketplace client.
type MarketplaceAPI interface {
	ChatAPI
	QuestionAPI
	ReviewAPI
}

var _ MarketplaceAPI = (*ozon.Client)(nil)
