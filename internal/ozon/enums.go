package ozon

import (
	"encoding/json"
	"strconv"
	"strings"
)

// UserType is the author class of a chat message.
type UserType int

const (
	UserTypeUnknown UserType = iota
	UserTypeCustomer
	UserTypeSeller
	UserTypeCRM
	UserTypeCourier
	UserTypeSupport
	UserTypeNotification
)

var userTypeNames = map[UserType]string{
	UserTypeUnknown:      "Unknown",
	UserTypeCustomer:     "Customer",
	UserTypeSeller:       "Seller",
	UserTypeCRM:          "Crm",
	UserTypeCourier:      "Courier",
	UserTypeSupport:      "Support",
	UserTypeNotification: "NotificationUser",
}

// ParseUserType maps the wire value case-insensitively.
func ParseUserType(raw string) UserType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer":
		return UserTypeCustomer
	case "seller":
		return UserTypeSeller
	case "crm":
		return UserTypeCRM
	case "courier":
		return UserTypeCourier
	case "support":
		return UserTypeSupport
	case "notificationuser", "notification_user":
		return UserTypeNotification
	}
	return UserTypeUnknown
}

func (u UserType) String() string {
	if name, ok := userTypeNames[u]; ok {
		return name
	}
	return userTypeNames[UserTypeUnknown]
}

func (u *UserType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = ParseUserType(raw)
	return nil
}

func (u UserType) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// ChatType distinguishes buyer chats from marketplace support chats.
type ChatType int

const (
	ChatTypeUnknown ChatType = iota
	ChatTypeBuyerSeller
	ChatTypeSellerSupport
)

// ParseChatType accepts both "Buyer_Seller" and "BUYER_SELLER".
func ParseChatType(raw string) ChatType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUYER_SELLER":
		return ChatTypeBuyerSeller
	case "SELLER_SUPPORT":
		return ChatTypeSellerSupport
	}
	return ChatTypeUnknown
}

func (c ChatType) String() string {
	switch c {
	case ChatTypeBuyerSeller:
		return "BUYER_SELLER"
	case ChatTypeSellerSupport:
		return "SELLER_SUPPORT"
	}
	return "UNSPECIFIED"
}

func (c *ChatType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = ParseChatType(raw)
	return nil
}

func (c ChatType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ChatStatus filters and describes chats.
type ChatStatus int

const (
	ChatStatusAll ChatStatus = iota
	ChatStatusOpened
	ChatStatusClosed
)

// ParseChatStatus accepts "Opened" as well as "OPENED".
func ParseChatStatus(raw string) ChatStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OPENED", "OPEN":
		return ChatStatusOpened
	case "CLOSED":
		return ChatStatusClosed
	}
	return ChatStatusAll
}

func (s ChatStatus) String() string {
	switch s {
	case ChatStatusOpened:
		return "OPENED"
	case ChatStatusClosed:
		return "CLOSED"
	}
	return "ALL"
}

func (s *ChatStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseChatStatus(raw)
	return nil
}

func (s ChatStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// HistoryDirection orders chat history pages.
type HistoryDirection string

const (
	DirectionBackward HistoryDirection = "Backward"
	DirectionForward  HistoryDirection = "Forward"
)

// QuestionStatus is the moderation state of a product question.
type QuestionStatus string

const (
	QuestionStatusNew       QuestionStatus = "NEW"
	QuestionStatusViewed    QuestionStatus = "VIEWED"
	QuestionStatusProcessed QuestionStatus = "PROCESSED"
	QuestionStatusAll       QuestionStatus = "ALL"
)

// ReviewStatus filters the review list.
type ReviewStatus string

const (
	ReviewStatusAll         ReviewStatus = "ALL"
	ReviewStatusUnprocessed ReviewStatus = "UNPROCESSED"
	ReviewStatusProcessed   ReviewStatus = "PROCESSED"
)

// SortDirection orders cursor pages.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ID is a marketplace identifier that is sent as a JSON number when numeric
// and accepted as either a number or a string.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		*id = ID(raw)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*id = ID(num.String())
	return nil
}
