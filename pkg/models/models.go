// Package models defines the domain types shared by the server, the
// backing store, and the client libraries: orders, workflow items,
// planning rows, and per-person notes.
package models

import "time"

// WorkflowType partitions workflow items into independent lists.
// Ordering is maintained per type; reordering one list never touches
// the positions of another.
type WorkflowType string

// Workflow list types.
const (
	WorkflowAchat    WorkflowType = "ACHAT"
	WorkflowStandard WorkflowType = "STANDARD"
	WorkflowAtelier  WorkflowType = "ATELIER"
	WorkflowDTF      WorkflowType = "DTF"
)

// WorkflowTypes lists all workflow list types in display order.
var WorkflowTypes = []WorkflowType{
	WorkflowAchat,
	WorkflowStandard,
	WorkflowAtelier,
	WorkflowDTF,
}

// Valid reports whether t is a known workflow type.
func (t WorkflowType) Valid() bool {
	switch t {
	case WorkflowAchat, WorkflowStandard, WorkflowAtelier, WorkflowDTF:
		return true
	}
	return false
}

// WorkflowItem is one row of a workflow list. Items of the same type
// form a strictly ordered sequence by Position; rendering sorts by
// Position ascending with ID as the tie-break.
type WorkflowItem struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Type      WorkflowType `json:"type"`
	Position  int          `json:"position"`
	Done      bool         `json:"done"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Priority is the urgency level of a planning row.
type Priority string

// Planning priorities.
const (
	PriorityLow    Priority = "BASSE"
	PriorityMedium Priority = "MOYENNE"
	PriorityHigh   Priority = "HAUTE"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// PlanningStatus tracks a planning row through the production pipeline.
type PlanningStatus string

// Planning statuses.
const (
	StatusToQuote         PlanningStatus = "A_DEVISER"
	StatusAwaitValidation PlanningStatus = "ATTENTE_VALIDATION"
	StatusMockupTodo      PlanningStatus = "MAQUETTE_A_FAIRE"
	StatusAwaitGoods      PlanningStatus = "ATTENTE_MARCHANDISE"
	StatusToPrepare       PlanningStatus = "A_PREPARER"
	StatusToProduce       PlanningStatus = "A_PRODUIRE"
	StatusInProduction    PlanningStatus = "EN_PRODUCTION"
	StatusToAssemble      PlanningStatus = "A_MONTER_NETTOYER"
	StatusMissingInfo     PlanningStatus = "MANQUE_INFORMATION"
	StatusDone            PlanningStatus = "TERMINE"
	StatusNotifyClient    PlanningStatus = "PREVENIR_CLIENT"
	StatusClientNotified  PlanningStatus = "CLIENT_PREVENU"
	StatusClientFollowUp  PlanningStatus = "RELANCE_CLIENT"
	StatusPickedUp        PlanningStatus = "PRODUIT_RECUPERE"
	StatusToInvoice       PlanningStatus = "A_FACTURER"
	StatusInvoiced        PlanningStatus = "FACTURE_FAITE"
)

// PlanningStatuses lists all planning statuses.
var PlanningStatuses = []PlanningStatus{
	StatusToQuote, StatusAwaitValidation, StatusMockupTodo, StatusAwaitGoods,
	StatusToPrepare, StatusToProduce, StatusInProduction, StatusToAssemble,
	StatusMissingInfo, StatusDone, StatusNotifyClient, StatusClientNotified,
	StatusClientFollowUp, StatusPickedUp, StatusToInvoice, StatusInvoiced,
}

// Valid reports whether s is a known planning status.
func (s PlanningStatus) Valid() bool {
	for _, known := range PlanningStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PlanningItem is one row of the global planning table. All rows share
// a single position order (no bucketing by type).
type PlanningItem struct {
	ID          string         `json:"id"`
	Priority    Priority       `json:"priority"`
	ClientName  string         `json:"clientName"`
	Quantity    int            `json:"quantity"`
	Designation string         `json:"designation"`
	Note        string         `json:"note"`
	UnitPrice   float64        `json:"unitPrice"`
	Deadline    *time.Time     `json:"deadline"`
	Status      PlanningStatus `json:"status"`
	Responsible string         `json:"responsible"`
	Position    int            `json:"position"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// People are the fixed team member keys that own person notes.
var People = []string{"loic", "charlie", "melina", "amandine"}

// ValidPerson reports whether key names a known team member.
func ValidPerson(key string) bool {
	for _, p := range People {
		if p == key {
			return true
		}
	}
	return false
}

// Todo is one entry of a person note's todo list. Array order is
// display order; there is no separate persisted position.
type Todo struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// PersonNote is the shared note owned by one team member.
type PersonNote struct {
	Person    string    `json:"person"`
	Content   string    `json:"content"`
	Todos     []Todo    `json:"todos"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentStatus of an order.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// OrderStatus tracks an order through the shop pipeline.
type OrderStatus string

// Order statuses.
const (
	OrderToProcess       OrderStatus = "COMMANDE_A_TRAITER"
	OrderOnHold          OrderStatus = "COMMANDE_EN_ATTENTE"
	OrderToPrepare       OrderStatus = "COMMANDE_A_PREPARER"
	OrderMockupTodo      OrderStatus = "MAQUETTE_A_FAIRE"
	OrderPressTodo       OrderStatus = "PRT_A_FAIRE"
	OrderAwaitValidation OrderStatus = "EN_ATTENTE_VALIDATION"
	OrderPrinting        OrderStatus = "EN_COURS_IMPRESSION"
	OrderPressing        OrderStatus = "PRESSAGE_A_FAIRE"
	OrderContactClient   OrderStatus = "CLIENT_A_CONTACTER"
	OrderClientNotified  OrderStatus = "CLIENT_PREVENU"
	OrderArchived        OrderStatus = "ARCHIVES"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ID       string  `json:"id"`
	OrderID  string  `json:"orderId"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a customer order ingested from the studio webhook. This
// subsystem only relays change notifications for orders; their
// lifecycle is owned elsewhere.
type Order struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"orderNumber"`
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	CustomerPhone string        `json:"customerPhone,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         float64       `json:"total"`
	Subtotal      float64       `json:"subtotal"`
	Shipping      float64       `json:"shipping"`
	Tax           float64       `json:"tax"`
	Currency      string        `json:"currency"`
	Notes         string        `json:"notes,omitempty"`
	Category      string        `json:"category,omitempty"`
	Deadline      *time.Time    `json:"deadline,omitempty"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// OrderStats summarizes orders for the dashboard header.
type OrderStats struct {
	TotalOrders   int     `json:"totalOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
	PendingOrders int     `json:"pendingOrders"`
	PaidOrders    int     `json:"paidOrders"`
	TodayOrders   int     `json:"todayOrders"`
	TodayRevenue  float64 `json:"todayRevenue"`
}
