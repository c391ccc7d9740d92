package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusOnWay     OrderStatus = "on_way"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// orderTransitions is the directed status graph. Forward moves past accepted are
// administrative; pending is the only state that can be cancelled.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:  {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusOnWay},
	StatusOnWay:    {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusOnWay, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next is a direct successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

// OrderItem is the frozen quantity and unit price of one product in an order.
type OrderItem struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	OrderID   uint    `json:"-" gorm:"not null;uniqueIndex:idx_order_items_order_product"`
	ProductID string  `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_order_items_order_product"`
	Name      string  `json:"name" gorm:"type:varchar(100)"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	Price     float64 `json:"price" gorm:"not null"` // unit price at the time of order
}

// Order represents a customer order.
type Order struct {
	ID             uint          `json:"order_id" gorm:"primaryKey;autoIncrement"`
	UserID         string        `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Items          []OrderItem   `json:"products" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total          float64       `json:"total"`
	Discount       float64       `json:"discount"`
	ShippingAmount float64       `json:"shipping_amount"`
	Status         OrderStatus   `json:"current_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod  PaymentMethod `json:"payment_method" gorm:"type:varchar(20);not null"`
	PaymentID      string        `json:"payment_id,omitempty" gorm:"type:varchar(255);index"`
	PaymentURL     string        `json:"payment_url,omitempty"`

	Apartment   string `json:"apartment"`
	Floor       string `json:"floor"`
	Building    string `json:"building"`
	Street      string `json:"street"`
	Area        string `json:"area"`
	City        string `json:"city"`
	SecondPhone string `json:"second_phone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quantities returns product id -> ordered quantity.
func (o *Order) Quantities() map[string]int {
	out := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}
