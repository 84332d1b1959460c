package admin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

const (
	EntityUsers             = "users"
	EntityShops             = "shops"
	EntityCategories        = "categories"
	EntityProducts          = "products"
	EntityProductInfos      = "product-infos"
	EntityParameters        = "parameters"
	EntityProductParameters = "product-parameters"
	EntityOrders            = "orders"
	EntityOrderItems        = "order-items"
	EntityContacts          = "contacts"
	EntityConfirmTokens     = "confirm-tokens"
)

// Column is one output field of a list or detail row.
type Column struct {
	Key  string
	Expr string
}

// Filter maps a query parameter to an equality condition.
type Filter struct {
	Param string
	Expr  string
	Bool  bool
}

type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindBool
	KindDecimal
	KindUUID
	KindShopState
	KindUserType
)

// Field is an editable column.
type Field struct {
	Column   string
	Kind     FieldKind
	Nullable bool
	// Positive rejects values below 1 for KindInt.
	Positive bool
}

// ReadModel describes how the panel lists, searches, filters and edits one
// entity.
type ReadModel struct {
	Name       string
	Table      string
	Joins      []string
	Columns    []Column
	Filters    []Filter
	Search     []string
	Editable   map[string]Field
	ReadOnly   []string
	OrderBy    string
	HasUpdated bool
}

func textID(expr string) string { return "CAST(" + expr + " AS TEXT)" }

var readModels = []ReadModel{
	{
		Name:  EntityUsers,
		Table: "users",
		Columns: []Column{
			{"id", textID("users.id")},
			{"email", "users.email"},
			{"first_name", "users.first_name"},
			{"last_name", "users.last_name"},
			{"company", "users.company"},
			{"position", "users.position"},
			{"type", "users.type"},
			{"is_active", "users.is_active"},
			{"is_staff", "users.is_staff"},
			{"is_superuser", "users.is_superuser"},
			{"last_login_at", "users.last_login_at"},
			{"created_at", "users.created_at"},
		},
		Filters: []Filter{
			{Param: "is_staff", Expr: "users.is_staff", Bool: true},
			{Param: "is_superuser", Expr: "users.is_superuser", Bool: true},
			{Param: "is_active", Expr: "users.is_active", Bool: true},
			{Param: "type", Expr: "users.type"},
		},
		Search: []string{"users.email", "users.first_name", "users.last_name"},
		Editable: map[string]Field{
			"email":        {Column: "email", Kind: KindString},
			"first_name":   {Column: "first_name", Kind: KindString},
			"last_name":    {Column: "last_name", Kind: KindString},
			"company":      {Column: "company", Kind: KindString},
			"position":     {Column: "position", Kind: KindString},
			"type":         {Column: "type", Kind: KindUserType},
			"is_active":    {Column: "is_active", Kind: KindBool},
			"is_staff":     {Column: "is_staff", Kind: KindBool},
			"is_superuser": {Column: "is_superuser", Kind: KindBool},
		},
		ReadOnly:   []string{"id", "last_login_at", "created_at"},
		OrderBy:    "users.email ASC",
		HasUpdated: true,
	},
	{
		Name:  EntityShops,
		Table: "shops",
		Joins: []string{"LEFT JOIN users ON users.id = shops.user_id"},
		Columns: []Column{
			{"id", textID("shops.id")},
			{"name", "shops.name"},
			{"url", "shops.url"},
			{"user", "users.email"},
			{"state", "shops.state"},
		},
		Filters: []Filter{{Param: "state", Expr: "shops.state"}},
		Search:  []string{"shops.name", "shops.url"},
		Editable: map[string]Field{
			"name":  {Column: "name", Kind: KindString},
			"url":   {Column: "url", Kind: KindString, Nullable: true},
			"state": {Column: "state", Kind: KindShopState},
		},
		ReadOnly:   []string{"id", "user"},
		OrderBy:    "shops.name ASC",
		HasUpdated: true,
	},
	{
		Name:     EntityCategories,
		Table:    "categories",
		Columns:  []Column{{"id", textID("categories.id")}, {"name", "categories.name"}},
		Search:   []string{"categories.name"},
		Editable: map[string]Field{"name": {Column: "name", Kind: KindString}},
		ReadOnly: []string{"id"},
		OrderBy:  "categories.name ASC",
	},
	{
		Name:  EntityProducts,
		Table: "products",
		Joins: []string{"JOIN categories ON categories.id = products.category_id"},
		Columns: []Column{
			{"id", textID("products.id")},
			{"name", "products.name"},
			{"category", "categories.name"},
		},
		Filters: []Filter{{Param: "category", Expr: textID("products.category_id")}},
		Search:  []string{"products.name", "categories.name"},
		Editable: map[string]Field{
			"name":     {Column: "name", Kind: KindString},
			"category": {Column: "category_id", Kind: KindUUID},
		},
		ReadOnly: []string{"id"},
		OrderBy:  "products.name ASC",
	},
	{
		Name:  EntityProductInfos,
		Table: "product_infos",
		Joins: []string{
			"JOIN products ON products.id = product_infos.product_id",
			"JOIN categories ON categories.id = products.category_id",
			"JOIN shops ON shops.id = product_infos.shop_id",
		},
		Columns: []Column{
			{"id", textID("product_infos.id")},
			{"model", "product_infos.model"},
			{"product", "products.name"},
			{"shop", "shops.name"},
			{"quantity", "product_infos.quantity"},
			{"price", "product_infos.price"},
			{"price_rrc", "product_infos.price_rrc"},
			{"external_id", "product_infos.external_id"},
		},
		Filters: []Filter{
			{Param: "product", Expr: textID("product_infos.product_id")},
			{Param: "shop", Expr: textID("product_infos.shop_id")},
		},
		Search: []string{"product_infos.model", "products.name", "shops.name", "categories.name"},
		Editable: map[string]Field{
			"model":     {Column: "model", Kind: KindString},
			"quantity":  {Column: "quantity", Kind: KindInt},
			"price":     {Column: "price", Kind: KindDecimal},
			"price_rrc": {Column: "price_rrc", Kind: KindDecimal},
		},
		ReadOnly:   []string{"id", "external_id", "product", "shop"},
		OrderBy:    "products.name ASC, shops.name ASC",
		HasUpdated: true,
	},
	{
		Name:     EntityParameters,
		Table:    "parameters",
		Columns:  []Column{{"id", textID("parameters.id")}, {"name", "parameters.name"}},
		Search:   []string{"parameters.name"},
		Editable: map[string]Field{"name": {Column: "name", Kind: KindString}},
		ReadOnly: []string{"id"},
		OrderBy:  "parameters.name ASC",
	},
	{
		Name:  EntityProductParameters,
		Table: "product_parameters",
		Joins: []string{
			"JOIN product_infos ON product_infos.id = product_parameters.product_info_id",
			"JOIN products ON products.id = product_infos.product_id",
			"JOIN parameters ON parameters.id = product_parameters.parameter_id",
		},
		Columns: []Column{
			{"id", textID("product_parameters.id")},
			{"product", "products.name"},
			{"parameter", "parameters.name"},
			{"value", "product_parameters.value"},
		},
		Filters: []Filter{
			{Param: "parameter", Expr: textID("product_parameters.parameter_id")},
			{Param: "value", Expr: "product_parameters.value"},
		},
		Search:   []string{"products.name", "parameters.name"},
		Editable: map[string]Field{"value": {Column: "value", Kind: KindString}},
		ReadOnly: []string{"id", "product", "parameter"},
		OrderBy:  "products.name ASC, parameters.name ASC",
	},
	{
		Name:  EntityOrders,
		Table: "orders",
		Joins: []string{"JOIN users ON users.id = orders.user_id"},
		Columns: []Column{
			{"id", textID("orders.id")},
			{"user", "users.email"},
			{"dt", "orders.created_at"},
			{"state", "orders.state"},
			{"contact", textID("orders.contact_id")},
		},
		Filters: []Filter{
			{Param: "user", Expr: textID("orders.user_id")},
			{Param: "dt", Expr: "DATE(orders.created_at)"},
			{Param: "state", Expr: "orders.state"},
		},
		Search: []string{"users.last_name", "users.email"},
		Editable: map[string]Field{
			"contact": {Column: "contact_id", Kind: KindUUID, Nullable: true},
		},
		ReadOnly:   []string{"id", "user", "dt", "state"},
		OrderBy:    "orders.created_at DESC",
		HasUpdated: true,
	},
	{
		Name:  EntityOrderItems,
		Table: "order_items",
		Joins: []string{
			"JOIN orders ON orders.id = order_items.order_id",
			"JOIN users ON users.id = orders.user_id",
			"JOIN product_infos ON product_infos.id = order_items.product_info_id",
			"JOIN products ON products.id = product_infos.product_id",
			"JOIN categories ON categories.id = products.category_id",
		},
		Columns: []Column{
			{"id", textID("order_items.id")},
			{"order", textID("order_items.order_id")},
			{"product", "products.name"},
			{"quantity", "order_items.quantity"},
		},
		Filters: []Filter{
			{Param: "user_email", Expr: "users.email"},
			{Param: "category", Expr: "categories.name"},
		},
		Search:   []string{"users.email", "products.name"},
		Editable: map[string]Field{"quantity": {Column: "quantity", Kind: KindInt, Positive: true}},
		ReadOnly: []string{"id", "order", "product"},
		OrderBy:  "order_items.created_at DESC",
	},
	{
		Name:  EntityContacts,
		Table: "contacts",
		Joins: []string{"JOIN users ON users.id = contacts.user_id"},
		Columns: []Column{
			{"id", textID("contacts.id")},
			{"user", "users.email"},
			{"city", "contacts.city"},
			{"street", "contacts.street"},
			{"house", "contacts.house"},
			{"structure", "contacts.structure"},
			{"building", "contacts.building"},
			{"apartment", "contacts.apartment"},
			{"phone", "contacts.phone"},
		},
		Filters: []Filter{{Param: "city", Expr: "contacts.city"}},
		Search:  []string{"users.email", "contacts.city"},
		Editable: map[string]Field{
			"city":      {Column: "city", Kind: KindString},
			"street":    {Column: "street", Kind: KindString},
			"house":     {Column: "house", Kind: KindString},
			"structure": {Column: "structure", Kind: KindString},
			"building":  {Column: "building", Kind: KindString},
			"apartment": {Column: "apartment", Kind: KindString},
			"phone":     {Column: "phone", Kind: KindString},
		},
		ReadOnly:   []string{"id", "user"},
		OrderBy:    "contacts.created_at DESC",
		HasUpdated: true,
	},
	{
		Name:  EntityConfirmTokens,
		Table: "confirm_email_tokens",
		Joins: []string{"JOIN users ON users.id = confirm_email_tokens.user_id"},
		Columns: []Column{
			{"id", textID("confirm_email_tokens.id")},
			{"user", "users.email"},
			{"key", "confirm_email_tokens.key"},
			{"created_at", "confirm_email_tokens.created_at"},
		},
		ReadOnly: []string{"id", "user", "key", "created_at"},
		OrderBy:  "confirm_email_tokens.created_at DESC",
	},
}

var readModelByName = func() map[string]*ReadModel {
	out := make(map[string]*ReadModel, len(readModels))
	for i := range readModels {
		out[readModels[i].Name] = &readModels[i]
	}
	return out
}()

// Lookup returns the read model registered under name.
func Lookup(name string) (*ReadModel, bool) {
	rm, ok := readModelByName[name]
	return rm, ok
}

// Entities lists the registered entity names in panel order.
func Entities() []string {
	out := make([]string, 0, len(readModels))
	for _, rm := range readModels {
		out = append(out, rm.Name)
	}
	return out
}

func (rm *ReadModel) selectList() string {
	parts := make([]string, 0, len(rm.Columns))
	for _, c := range rm.Columns {
		parts = append(parts, fmt.Sprintf("%s AS %s", c.Expr, quoteAlias(c.Key)))
	}
	return strings.Join(parts, ", ")
}

func quoteAlias(key string) string {
	return `"` + key + `"`
}

func (rm *ReadModel) filter(param string) (Filter, bool) {
	for _, f := range rm.Filters {
		if f.Param == param {
			return f, true
		}
	}
	return Filter{}, false
}

func (rm *ReadModel) isReadOnly(key string) bool {
	for _, k := range rm.ReadOnly {
		if k == key {
			return true
		}
	}
	return false
}

// coerce converts a decoded JSON value into the column's Go type.
func (f Field) coerce(raw any) (any, error) {
	if raw == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("may not be null")
	}
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" && !f.Nullable {
			return nil, fmt.Errorf("may not be blank")
		}
		return s, nil
	case KindInt:
		n, ok := raw.(float64)
		if !ok || n != float64(int64(n)) {
			return nil, fmt.Errorf("must be an integer")
		}
		if n < 0 || (f.Positive && n < 1) {
			return nil, fmt.Errorf("must be positive")
		}
		return int64(n), nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case KindDecimal:
		var d decimal.Decimal
		var err error
		switch v := raw.(type) {
		case string:
			d, err = decimal.NewFromString(v)
		case float64:
			d = decimal.NewFromFloat(v)
		default:
			err = fmt.Errorf("bad type")
		}
		if err != nil {
			return nil, fmt.Errorf("must be a decimal number")
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("must not be negative")
		}
		return d.Round(2), nil
	case KindUUID:
		s, _ := raw.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("must be a valid uuid")
		}
		return id, nil
	case KindShopState:
		s, _ := raw.(string)
		state, err := enums.ParseShopState(s)
		if err != nil {
			return nil, fmt.Errorf("must be open or closed")
		}
		return state, nil
	case KindUserType:
		s, _ := raw.(string)
		t, err := enums.ParseUserType(s)
		if err != nil {
			return nil, fmt.Errorf("must be buyer or shop")
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported field")
}

// value converts a raw query value for comparison against the filter column.
func (f Filter) value(raw string) (any, error) {
	if !f.Bool {
		return raw, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("must be true or false")
	}
	return b, nil
}
