package ozon

import (
	"context"
	"strings"
	"time"
)

const (
	endpointQuestionList   = "/v1/question/list"
	endpointQuestionAnswer = "/v1/question/answer/create"
	endpointQuestionStatus = "/v1/question/change_status"

	// zeroCursor is returned as last_id when no page follows.
	zeroCursor = "00000000-0000-0000-0000-000000000000"

	questionPlanCode   = 7
	maxAnswerTextRunes = 3000
)

// Question is a product question asked by a buyer.
type Question struct {
	ID          string         `json:"id"`
	AuthorName  string         `json:"author_name"`
	PublishedAt time.Time      `json:"published_at"`
	Text        string         `json:"text"`
	SKU         int64          `json:"sku"`
	ProductURL  string         `json:"product_url"`
	Status      QuestionStatus `json:"status"`
}

// QuestionFilter selects questions to drain.
type QuestionFilter struct {
	Status   QuestionStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

type questionListPayload struct {
	Filter questionListFilter `json:"filter"`
	LastID string             `json:"last_id,omitempty"`
}

type questionListFilter struct {
	Status   QuestionStatus `json:"status,omitempty"`
	DateFrom *time.Time     `json:"date_from,omitempty"`
	DateTo   *time.Time     `json:"date_to,omitempty"`
}

type questionListResponse struct {
	Questions []Question `json:"questions"`
	LastID    string     `json:"last_id"`
}

// ListQuestions follows the last_id cursor until the server signals the end
// and returns every question that is not already processed.
func (c *Client) ListQuestions(ctx context.Context, token string, filter QuestionFilter) ([]Question, error) {
	status := filter.Status
	if status == "" {
		status = QuestionStatusNew
	}
	payload := questionListPayload{
		Filter: questionListFilter{Status: status, DateFrom: filter.DateFrom, DateTo: filter.DateTo},
	}

	var questions []Question
	for {
		var resp questionListResponse
		if err := c.post(ctx, token, endpointQuestionList, payload, &resp, withPlanCodes(questionPlanCode)); err != nil {
			return nil, swallowPlan(err)
		}
		if len(resp.Questions) == 0 {
			break
		}
		for _, q := range resp.Questions {
			if q.Status == QuestionStatusProcessed {
				continue
			}
			questions = append(questions, q)
		}
		if resp.LastID == "" || resp.LastID == zeroCursor || resp.LastID == payload.LastID {
			break
		}
		payload.LastID = resp.LastID
	}
	return questions, nil
}

type questionAnswerPayload struct {
	QuestionID string `json:"question_id"`
	SKU        int64  `json:"sku"`
	Text       string `json:"text"`
}

// AnswerQuestion publishes a seller answer. Text longer than 3000 characters
// is truncated.
func (c *Client) AnswerQuestion(ctx context.Context, token, questionID string, sku int64, text string) error {
	if strings.TrimSpace(questionID) == "" || sku == 0 {
		return invalidArgument("question id and sku are required to answer a question")
	}
	if strings.TrimSpace(text) == "" {
		return invalidArgument("text is required to answer a question")
	}
	payload := questionAnswerPayload{QuestionID: questionID, SKU: sku, Text: truncateRunes(text, maxAnswerTextRunes)}
	return swallowPlan(c.post(ctx, token, endpointQuestionAnswer, payload, nil))
}

type questionStatusPayload struct {
	QuestionIDs []string       `json:"question_ids"`
	Status      QuestionStatus `json:"status"`
}

// MarkQuestionsViewed moves questions to VIEWED.
func (c *Client) MarkQuestionsViewed(ctx context.Context, token string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := questionStatusPayload{QuestionIDs: ids, Status: QuestionStatusViewed}
	return swallowPlan(c.post(ctx, token, endpointQuestionStatus, payload, nil))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
