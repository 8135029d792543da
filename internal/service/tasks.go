package service

// Task kinds routed through the worker queue.
const (
	KindChatList      = "ozon.chat.list"
	KindChatReconcile = "ozon.chat.reconcile"
	KindChatMarkRead  = "ozon.chat.mark_read"
	KindQuestionSync  = "ozon.question.sync"
	KindReviewList    = "ozon.review.list"
	KindReviewIngest  = "ozon.review.ingest"
	KindReviewReply   = "ozon.review.auto_reply"
	KindReply         = "ozon.reply"
	KindOrderChat     = "ozon.order.chat"
)

// ChatListTask polls the chat list of one token.
type ChatListTask struct {
	Profile    string
	Token      string
	UnreadOnly bool
}

func (t ChatListTask) Kind() string         { return KindChatList }
func (t ChatListTask) PartitionKey() string { return t.Profile }

// ReconcileChatTask pulls and merges the history of one chat.
type ReconcileChatTask struct {
	Profile      string
	Token        string
	ChatID       string
	HistoryLimit int
}

func (t ReconcileChatTask) Kind() string         { return KindChatReconcile }
func (t ReconcileChatTask) PartitionKey() string { return t.ChatID }

// MarkReadTask marks a chat read up to the last stored message.
type MarkReadTask struct {
	TicketID string
	Attempt  int
}

func (t MarkReadTask) Kind() string         { return KindChatMarkRead }
func (t MarkReadTask) PartitionKey() string { return t.TicketID }

// QuestionSyncTask pulls new product questions of one token.
type QuestionSyncTask struct {
	Profile string
	Token   string
}

func (t QuestionSyncTask) Kind() string         { return KindQuestionSync }
func (t QuestionSyncTask) PartitionKey() string { return t.Profile }

// ReviewListTask pulls unprocessed reviews of one token.
type ReviewListTask struct {
	Profile string
	Token   string
	Attempt int
}

func (t ReviewListTask) Kind() string         { return KindReviewList }
func (t ReviewListTask) PartitionKey() string { return t.Profile }

// ReviewIngestTask turns one review into a ticket.
type ReviewIngestTask struct {
	Profile  string
	Token    string
	ReviewID string
	Rating   int
	Text     string
	Attempt  int
}

func (t ReviewIngestTask) Kind() string         { return KindReviewIngest }
func (t ReviewIngestTask) PartitionKey() string { return t.ReviewID }

// AutoReplyTask answers a review ticket with a canned text.
type AutoReplyTask struct {
	TicketID string
	Rating   int
}

func (t AutoReplyTask) Kind() string         { return KindReviewReply }
func (t AutoReplyTask) PartitionKey() string { return t.TicketID }

// ReplyTask sends the last operator message of a closed ticket.
type ReplyTask struct {
	TicketID string
	Attempt  int
}

func (t ReplyTask) Kind() string         { return KindReply }
func (t ReplyTask) PartitionKey() string { return t.TicketID }

// OrderChatTask opens a buyer chat for a new order.
type OrderChatTask struct {
	Notice OrderNotice
}

func (t OrderChatTask) Kind() string         { return KindOrderChat }
func (t OrderChatTask) PartitionKey() string { return t.Notice.Number }
