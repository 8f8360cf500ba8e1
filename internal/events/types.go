// Package events defines the domain events emitted by the ordering flow and
// the destinations they are written to.
package events

import (
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderPlaced     = "order_placed"
	TypeOrderStatus     = "order_status"
	TypeOrderFeedback   = "order_feedback"
	TypeCartUpdated     = "cart_updated"
	TypeItemAdded       = "item_added"
	TypeCouponApplied   = "coupon_applied"
	TypeOrderRejected   = "order_rejected"
	TypeUpsellSuggested = "upsell_suggested"
)

type Event interface {
	EventType() string
}

// BaseEvent is the common structure for all events
type BaseEvent struct {
	Timestamp int64  `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Type      string `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	TenantID  string `json:"tenantId" parquet:"name=tenantId,type=BYTE_ARRAY,convertedtype=UTF8"`
	SessionID string `json:"sessionId,omitempty" parquet:"name=sessionId,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func (b BaseEvent) EventType() string {
	return b.Type
}

func NewBase(eventType, tenantID, sessionID string, at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at.Unix(), Type: eventType, TenantID: tenantID, SessionID: sessionID}
}

// OrderPlacedEvent represents an order being placed
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderType     string `json:"orderType" parquet:"name=orderType,type=BYTE_ARRAY,convertedtype=UTF8"`
	Origin        string `json:"origin" parquet:"name=origin,type=BYTE_ARRAY,convertedtype=UTF8"`
	ItemCount     int32  `json:"itemCount" parquet:"name=itemCount,type=INT32"`
	Subtotal      string `json:"subtotal" parquet:"name=subtotal,type=BYTE_ARRAY,convertedtype=UTF8"`
	DiscountTotal string `json:"discountTotal" parquet:"name=discountTotal,type=BYTE_ARRAY,convertedtype=UTF8"`
	DeliveryFee   string `json:"deliveryFee" parquet:"name=deliveryFee,type=BYTE_ARRAY,convertedtype=UTF8"`
	Total         string `json:"total" parquet:"name=total,type=BYTE_ARRAY,convertedtype=UTF8"`
	PaymentMethod string `json:"paymentMethod" parquet:"name=paymentMethod,type=BYTE_ARRAY,convertedtype=UTF8"`
	CouponCode    string `json:"couponCode,omitempty" parquet:"name=couponCode,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func NewOrderPlaced(sessionID string, order *models.Order) OrderPlacedEvent {
	count := 0
	for _, it := range order.Items {
		count += it.Quantity
	}
	method := ""
	if len(order.Payments) > 0 {
		method = string(order.Payments[0].Method)
	}
	return OrderPlacedEvent{
		BaseEvent:     NewBase(TypeOrderPlaced, order.TenantID, sessionID, order.CreatedAt),
		OrderID:       order.ID,
		OrderType:     string(order.Type),
		Origin:        order.Origin,
		ItemCount:     int32(count),
		Subtotal:      order.Subtotal.String(),
		DiscountTotal: order.DiscountTotal.String(),
		DeliveryFee:   order.DeliveryFee.String(),
		Total:         order.Total.String(),
		PaymentMethod: method,
		CouponCode:    order.CouponCode,
	}
}

// OrderStatusEvent is emitted once per applied status transition.
type OrderStatusEvent struct {
	BaseEvent
	OrderID   string `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderType string `json:"orderType" parquet:"name=orderType,type=BYTE_ARRAY,convertedtype=UTF8"`
	From      string `json:"from" parquet:"name=from,type=BYTE_ARRAY,convertedtype=UTF8"`
	To        string `json:"to" parquet:"name=to,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func NewOrderStatus(order models.Order, from models.OrderStatus, at time.Time) OrderStatusEvent {
	return OrderStatusEvent{
		BaseEvent: NewBase(TypeOrderStatus, order.TenantID, "", at),
		OrderID:   order.ID,
		OrderType: string(order.Type),
		From:      string(from),
		To:        string(order.Status),
	}
}

type OrderFeedbackEvent struct {
	BaseEvent
	OrderID string `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Rating  int32  `json:"rating" parquet:"name=rating,type=INT32"`
	Comment string `json:"comment,omitempty" parquet:"name=comment,type=BYTE_ARRAY,convertedtype=UTF8"`
}

type OrderRejectedEvent struct {
	BaseEvent
	Reason string `json:"reason" parquet:"name=reason,type=BYTE_ARRAY,convertedtype=UTF8"`
}

type CartUpdatedEvent struct {
	BaseEvent
	ItemCount int32  `json:"itemCount" parquet:"name=itemCount,type=INT32"`
	Total     string `json:"total" parquet:"name=total,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func NewCartUpdated(tenantID, sessionID string, count int, total decimal.Decimal, at time.Time) CartUpdatedEvent {
	return CartUpdatedEvent{
		BaseEvent: NewBase(TypeCartUpdated, tenantID, sessionID, at),
		ItemCount: int32(count),
		Total:     total.String(),
	}
}

type ItemAddedEvent struct {
	BaseEvent
	ProductID string `json:"productId" parquet:"name=productId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Quantity  int32  `json:"quantity" parquet:"name=quantity,type=INT32"`
	LineID    string `json:"lineId" parquet:"name=lineId,type=BYTE_ARRAY,convertedtype=UTF8"`
}

type UpsellSuggestedEvent struct {
	BaseEvent
	AddedProductID     string `json:"addedProductId" parquet:"name=addedProductId,type=BYTE_ARRAY,convertedtype=UTF8"`
	SuggestedProductID string `json:"suggestedProductId" parquet:"name=suggestedProductId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Strategy           string `json:"strategy" parquet:"name=strategy,type=BYTE_ARRAY,convertedtype=UTF8"`
}

type CouponAppliedEvent struct {
	BaseEvent
	Code    string `json:"code" parquet:"name=code,type=BYTE_ARRAY,convertedtype=UTF8"`
	Removed bool   `json:"removed" parquet:"name=removed,type=BOOLEAN"`
}
