package dto

// OrderProduct is one product line of an order notice.
type OrderProduct struct {
	Name            string   `json:"name"`
	Characteristics []string `json:"characteristics"`
}

// OrderChatRequest announces a new order whose buyer should be greeted.
type OrderChatRequest struct {
	Number   string         `json:"number"`
	Token    string         `json:"token"`
	Profile  string         `json:"profile"`
	Greeting string         `json:"greeting"`
	Products []OrderProduct `json:"products"`
}

// OrderIndexRequest binds an order number to its owner profile.
type OrderIndexRequest struct {
	Number  string `json:"number"`
	Profile string `json:"profile"`
}
