package service

// ReplyTemplates hold canned review answers by rating band.
type ReplyTemplates struct {
	High    string
	Average string
	Low     string
}

// DefaultReplyTemplates are used when no templates are configured.
var DefaultReplyTemplates = ReplyTemplates{
	High:    "Здравствуйте! Спасибо за высокую оценку. Нам очень приятно, что покупка Вам понравилась. Будем рады видеть Вас снова!",
	Average: "Здравствуйте! Спасибо за отзыв. Мы учтём Ваше мнение, чтобы стать лучше. Если остались вопросы по товару, напишите нам в чат.",
	Low:     "Здравствуйте! Нам очень жаль, что товар не оправдал ожиданий. Пожалуйста, напишите нам в чат по заказу, и мы постараемся помочь.",
}

// For picks the answer for a rating: 5 is high, 3 and 4 are average, lower
// ratings are low.
func (t ReplyTemplates) For(rating int) string {
	switch {
	case rating < 3:
		return t.Low
	case rating < 5:
		return t.Average
	default:
		return t.High
	}
}
