package normalize

import (
	"fmt"
	"html"
	"strings"

	"github.com/sellerdesk/ozon-support/internal/ozon"
)

const (
	ReviewAuthorName = "пользователь"

	productURL   = "https://www.ozon.ru/product/%d"
	noReviewText = "<strong><i>Текст отзыва отсутствует</i></strong>"
)

// ReviewTitle renders the rating badge used as a review ticket title.
func ReviewTitle(rating int) string {
	return fmt.Sprintf(`<span class="badge text-bg-%s align-middle">Рейтинг %d/5</span>`, ratingClass(rating), rating)
}

func ratingClass(rating int) string {
	switch {
	case rating >= 5:
		return "success"
	case rating >= 3:
		return "warning"
	case rating >= 1:
		return "danger"
	}
	return "secondary"
}

// OrderStatusLabel translates the order status a review was left on.
func OrderStatusLabel(status string) string {
	switch strings.ToUpper(status) {
	case "DELIVERED":
		return "ДОСТАВЛЕН"
	case "CANCELLED", "CANCELED":
		return "ОТМЕНЕН"
	}
	return "НЕИЗВЕСТНЫЙ СТАТУС"
}

// RenderReview assembles the review text with its product link, media and
// order status.
func RenderReview(info ozon.ReviewInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<a href="%s" class="ms-3" target="_blank">Ссылка на товар</a>`, fmt.Sprintf(productURL, info.SKU))
	b.WriteString("\n<div>")
	if strings.TrimSpace(info.Text) == "" {
		b.WriteString(noReviewText)
	} else {
		b.WriteString(escapeText(info.Text))
	}
	b.WriteString("</div>\n<div>")
	for _, p := range info.Photos {
		fmt.Fprintf(&b, `<a href="%s" class="ms-3" target="_blank">вложение (фото)</a>`, html.EscapeString(p.URL))
		b.WriteByte('\n')
	}
	for _, v := range info.Videos {
		fmt.Fprintf(&b, `<a href="%s" class="ms-3" target="_blank">вложение (видео)</a>`, html.EscapeString(v.URL))
		b.WriteByte('\n')
	}
	b.WriteString("</div>\n")
	fmt.Fprintf(&b, "<div>Статус заказа: %s</div>", OrderStatusLabel(info.OrderStatus))
	return b.String()
}

// RenderQuestion renders a product question with a link to the product.
func RenderQuestion(q ozon.Question) string {
	link := q.ProductURL
	if link == "" {
		link = fmt.Sprintf(productURL, q.SKU)
	}
	return fmt.Sprintf(`%s<p><a target="_blank" href="%s">Перейти на Ozon</a></p>`, escapeText(q.Text), html.EscapeString(link))
}
