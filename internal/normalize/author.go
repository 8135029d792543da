// Package normalize turns marketplace payloads into ticket message fields.
package normalize

import (
	"fmt"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
)

// Role is the class of a message author.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleSeller       Role = "seller"
	RoleCRM          Role = "crm"
	RoleCourier      Role = "courier"
	RoleSupport      Role = "support"
	RoleNotification Role = "notification"
	RoleUnknown      Role = "unknown"
)

const SellerName = "admin (OZON Seller)"

// Author is the display identity of a chat message author.
type Author struct {
	Name      string
	Direction domain.MessageDirection
	Role      Role
}

// ClassifyAuthor maps a chat user to a display name and direction. Only
// seller messages are outbound.
func ClassifyAuthor(user ozon.ChatUser) Author {
	switch user.Type {
	case ozon.UserTypeSeller:
		return Author{Name: SellerName, Direction: domain.DirectionOutbound, Role: RoleSeller}
	case ozon.UserTypeCustomer:
		return Author{Name: fmt.Sprintf("Пользователь (%s)", user.ID), Direction: domain.DirectionInbound, Role: RoleCustomer}
	case ozon.UserTypeCRM:
		return marketplace("CRM (OZON)", RoleCRM)
	case ozon.UserTypeCourier:
		return marketplace("Курьер (OZON)", RoleCourier)
	case ozon.UserTypeSupport:
		return marketplace("Поддержка (OZON)", RoleSupport)
	case ozon.UserTypeNotification:
		return marketplace("Уведомление (OZON)", RoleNotification)
	}
	return Author{Name: user.ID, Direction: domain.DirectionInbound, Role: RoleUnknown}
}

func marketplace(name string, role Role) Author {
	return Author{Name: name, Direction: domain.DirectionInbound, Role: role}
}
