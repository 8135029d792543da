package normalize

import (
	"regexp"
	"strings"
)

const (
	DefaultChatTitle     = "OZON"
	DefaultQuestionTitle = "OZON: вопрос"
)

var (
	articleMarker = regexp.MustCompile(`(?is)артикул.*`)
	quoted        = regexp.MustCompile(`"([^"]+)"`)
	orderNumber   = regexp.MustCompile(`\b\d{8,}-\d{4,}(?:-\d+)?\b`)
	postingSuffix = regexp.MustCompile(`-[1-9]\d?$`)
)

// InferTitle picks a ticket title from the first message. Rules run in a
// fixed order and a later match overwrites an earlier one: the text from the
// article marker on, then the first quoted phrase, then the refund marker.
func InferTitle(text, refund, fallback string) string {
	var title string
	if m := articleMarker.FindString(text); m != "" {
		title = strings.TrimSpace(m)
	}
	if m := quoted.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
	}
	if refund = strings.TrimSpace(refund); refund != "" {
		title = "Возврат № " + refund
	}
	if title == "" {
		return fallback
	}
	return title
}

// OrderNumber finds an order number in text. A trailing posting suffix such
// as "-1" is removed so the number matches the order index.
func OrderNumber(text string) (string, bool) {
	m := orderNumber.FindString(text)
	if m == "" {
		return "", false
	}
	return TrimPostingSuffix(m), true
}

// TrimPostingSuffix removes a one or two digit posting index.
func TrimPostingSuffix(number string) string {
	if strings.Count(number, "-") < 2 {
		return number
	}
	return postingSuffix.ReplaceAllString(number, "")
}

// OrderTitle is the title of a ticket bound to an order.
func OrderTitle(number string) string {
	return "Заказ #" + number
}

// DataParts splits the data array of a chat message. With more than one
// element the first is a refund marker and the rest, joined by newlines, the
// text.
func DataParts(data []string) (refund, text string) {
	switch len(data) {
	case 0:
		return "", ""
	case 1:
		return "", data[0]
	}
	return data[0], strings.Join(data[1:], "\n")
}
