package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateUser  OutboxAggregateType = "user"
	AggregateOrder OutboxAggregateType = "order"
	AggregateShop  OutboxAggregateType = "shop"
)

var validAggregateTypes = []OutboxAggregateType{AggregateUser, AggregateOrder, AggregateShop}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, validAggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf("aggregate type", value, validAggregateTypes)
}

// OutboxEventType names the change recorded in the outbox. Each type has
// one payload struct in pkg/outbox/payloads and one mail template.
type OutboxEventType string

const (
	EventUserRegistered    OutboxEventType = "user_registered"
	EventOrderStateChanged OutboxEventType = "order_state_changed"
	EventCatalogImported   OutboxEventType = "catalog_imported"
)

var validEventTypes = []OutboxEventType{EventUserRegistered, EventOrderStateChanged, EventCatalogImported}

func (e OutboxEventType) IsValid() bool { return oneOf(e, validEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf("event type", value, validEventTypes)
}
