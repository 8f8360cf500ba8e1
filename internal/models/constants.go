package models

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPreparing  OrderStatus = "PREPARING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderType string

const (
	OrderTypeDelivery OrderType = "DELIVERY"
	OrderTypeTakeout  OrderType = "TAKEOUT"
	OrderTypeDineIn   OrderType = "DINE_IN"
)

func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeDelivery, OrderTypeTakeout, OrderTypeDineIn:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "PIX"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentCash       PaymentMethod = "CASH"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentPix, PaymentCreditCard, PaymentDebitCard, PaymentCash:
		return true
	}
	return false
}

type CouponType string

const (
	CouponFixed      CouponType = "FIXED"
	CouponPercentage CouponType = "PERCENTAGE"
)

type OptionGroupType string

const (
	OptionGroupSingle OptionGroupType = "SINGLE"
	OptionGroupMulti  OptionGroupType = "MULTI"
)

type ProductType string

const (
	ProductTypeSimple ProductType = "SIMPLE"
	ProductTypeCombo  ProductType = "COMBO"
)

// Sales channels a product can carry overrides for.
const (
	ChannelPOS         = "pos"
	ChannelDigitalMenu = "digital_menu"
	ChannelDelivery    = "delivery"
)

// Store collections.
const (
	CollectionProducts     = "products"
	CollectionOptionGroups = "optionGroups"
	CollectionCoupons      = "coupons"
	CollectionOrders       = "orders"
	CollectionCarts        = "carts"
	CollectionProfiles     = "profiles"
)
