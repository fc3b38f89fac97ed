// AngelaMos | 2026
// history.go

package schema

import (
	"fmt"

	"github.com/localmart/localmart/internal/rules"
)

const (
	UsersID              = "_pb_users_auth_"
	StoresID             = "pbc_3800236418"
	StoreItemsID         = "pbc_1842453536"
	OrdersID             = "pbc_3527180448"
	OrderItemsID         = "pbc_2456927940"
	OrderStatusUpdatesID = "pbc_684026653"
	PaymentMethodsID     = "payment_methods"
	StripeCustomersID    = "stripe_customers"
	StoreRolesID         = "store_roles"
	FeatureFlagsID       = "pbc_728725186"
)

var (
	OrderStatuses   = []string{"pending", "confirmed", "picked_up", "delivered", "cancelled"}
	PaymentStatuses = []string{"pending", "processing", "succeeded", "failed", "refunded"}
	UserRoles       = []string{"admin", "delivery", "vendor"}
	StoreRoleValues = []string{"admin", "staff"}
)

// Rule sources as they were written at each point in the history.
const (
	ruleSelf          = "@request.auth.id = id"
	ruleOwnsUserField = "@request.auth.id = user.id"
	ruleOrderOwner    = "user.id = @request.auth.id"

	ruleUsersAdminEq   = `@request.auth.roles ?= "admin" || @request.auth.id = id`
	ruleUsersAdminLike = `@request.auth.roles ?~ "admin" || @request.auth.id = id`

	ruleOrdersAdminEq   = `@request.auth.roles ?= "admin" || user.id = @request.auth.id`
	ruleOrdersAdminLike = `@request.auth.roles ?~ "admin" || user.id = @request.auth.id`

	ruleAdminLike = "@request.auth.roles ?~ 'admin'"

	ruleAdminOrBodyStoreAdmin = "@request.auth.roles ?~ 'admin' || (@collection.store_roles.user.id = @request.auth.id && " +
		"@collection.store_roles.store.id = @request.body.store_item.store.id && @collection.store_roles.role = 'admin')"

	ruleAdminOrBodyStoreAdminML = "@request.auth.roles ?~ 'admin' || (\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = @request.body.store_item.store.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleAdminOrBodyItemsStoreAdminML = "@request.auth.roles ?~ 'admin' || (\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = @request.body.items.store.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleOrderItemsLegacyOwner = "@request.auth.role ?= 'admin' || @request.body.order.user.id = @request.auth.id"

	ruleStoreItemsStoreAdminML = "@request.auth.roles ?~ 'admin' ||\n(\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = store.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleOrdersOwnerOrStoreAdminML = "@request.auth.roles ?~ 'admin' ||\nuser.id = @request.auth.id ||\n(\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = order_items_via_order.store_item.store.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleOrderItemsCreateML = "@request.auth.role ?= 'admin' || \norder.user.id = @request.auth.id ||\n(\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = store_item.store.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleStoresBodyStoreAdminML = "@request.auth.roles ?~ 'admin' ||\n(\n" +
		"  @collection.store_roles.user.id = @request.auth.id &&\n" +
		"  @collection.store_roles.store.id = @request.body.id &&\n" +
		"  @collection.store_roles.role = 'admin'\n)"

	ruleStoreRolesLegacyAdmin = "@request.auth.roles.admin = true"
)

var (
	expr   = rules.Expression
	public = rules.Public()
	locked = rules.Locked()
)

func idField() Field {
	return Field{ID: "text3208210256", Name: "id", Type: TypeText, Required: true}
}

func text(id, name string) Field {
	return Field{ID: id, Name: name, Type: TypeText}
}

func number(id, name string) Field {
	return Field{ID: id, Name: name, Type: TypeNumber}
}

func boolean(id, name string) Field {
	return Field{ID: id, Name: name, Type: TypeBool}
}

func date(id, name string) Field {
	return Field{ID: id, Name: name, Type: TypeDate}
}

func jsonField(id, name string) Field {
	return Field{ID: id, Name: name, Type: TypeJSON}
}

func relation(id, name, target string, required bool) Field {
	return Field{ID: id, Name: name, Type: TypeRelation, Relation: target, Required: required, MaxSelect: 1}
}

func selectOf(id, name string, required bool, maxSelect int, values []string) Field {
	return Field{ID: id, Name: name, Type: TypeSelect, Required: required, MaxSelect: maxSelect, Values: values}
}

func timestamps() []Field {
	return []Field{
		{ID: "autodate2990389176", Name: "created", Type: TypeAutodate},
		{ID: "autodate3332085495", Name: "updated", Type: TypeAutodate},
	}
}

func withTimestamps(fields ...Field) []Field {
	return append(fields, timestamps()...)
}

func baseCollections() []Collection {
	return []Collection{
		{
			ID:   UsersID,
			Name: "users",
			Type: "auth",
			Fields: withTimestamps(
				idField(),
				Field{ID: "password901924565", Name: "password", Type: TypePassword, Required: true},
				text("text2504183744", "tokenKey"),
				Field{ID: "email3885137012", Name: "email", Type: TypeEmail, Required: true},
				boolean("bool1547992806", "emailVisibility"),
				boolean("bool256245529", "verified"),
				text("text4166911607", "first_name"),
				text("text2434144904", "last_name"),
				text("text1146066909", "phone_number"),
			),
			Indexes:    []Index{{Name: "idx_email__pb_users_auth_", Unique: true, Columns: []string{"email"}}},
			ListRule:   expr(ruleSelf),
			ViewRule:   expr(ruleSelf),
			CreateRule: public,
			UpdateRule: expr(ruleSelf),
			DeleteRule: expr(ruleSelf),
		},
		{
			ID:   StoresID,
			Name: "stores",
			Type: "base",
			Fields: withTimestamps(
				idField(),
				text("text1579384326", "name"),
				text("text2065657801", "street_1"),
				text("text3793108595", "street_2"),
				text("text760939060", "city"),
				text("text2744374011", "state"),
				text("text1284011536", "instagram"),
				text("text3405315371", "facebook"),
				text("text2229081726", "twitter"),
			),
			ListRule:   public,
			ViewRule:   public,
			CreateRule: locked,
			UpdateRule: locked,
			DeleteRule: locked,
		},
		{
			ID:   StoreItemsID,
			Name: "store_items",
			Type: "base",
			Fields: withTimestamps(
				idField(),
				relation("relation1493624730", "store", StoresID, true),
				text("text1579384326", "name"),
				text("text1843675174", "description"),
				number("number3402113753", "price"),
				number("number2683508278", "quantity"),
			),
			ListRule:   public,
			ViewRule:   public,
			CreateRule: locked,
			UpdateRule: locked,
			DeleteRule: locked,
		},
		{
			ID:   OrdersID,
			Name: "orders",
			Type: "base",
			Fields: withTimestamps(
				idField(),
				relation("relation2375276105", "user", UsersID, true),
				selectOf("select2063623452", "status", true, 1, OrderStatuses),
				number("number2892157019", "subtotal_amount"),
				number("number1370193347", "tax_amount"),
				number("number3785202386", "delivery_fee"),
				number("number3257917790", "total_amount"),
				jsonField("json1968342476", "delivery_address"),
				text("text2361183342", "customer_notes"),
			),
			ListRule:   expr(ruleOrderOwner),
			ViewRule:   expr(ruleOrderOwner),
			CreateRule: expr(rules.Authenticated()),
			UpdateRule: public,
			DeleteRule: locked,
		},
		{
			ID:   OrderItemsID,
			Name: "order_items",
			Type: "base",
			Fields: withTimestamps(
				idField(),
				relation("relation4113142680", "order", OrdersID, true),
				relation("relation1166429366", "store_item", StoreItemsID, true),
				number("number2683508278", "quantity"),
				number("number3906244004", "price_at_time"),
				number("number1186288468", "total_price"),
			),
			ListRule:   expr(ruleAdminOrBodyStoreAdmin),
			ViewRule:   expr(ruleAdminOrBodyStoreAdmin),
			CreateRule: expr(ruleAdminOrBodyStoreAdmin),
			UpdateRule: expr(ruleAdminOrBodyStoreAdmin),
			DeleteRule: expr(ruleAdminOrBodyStoreAdmin),
		},
		{
			ID:   FeatureFlagsID,
			Name: "feature_flags",
			Type: "base",
			Fields: withTimestamps(
				idField(),
				boolean("bool4087400498", "enable"),
				text("text1579384326", "name"),
			),
			Indexes:    []Index{{Name: "idx_feature_flags_name", Unique: true, Columns: []string{"name"}}},
			ListRule:   public,
			ViewRule:   public,
			CreateRule: locked,
			UpdateRule: locked,
			DeleteRule: locked,
		},
	}
}

func createAll(cs ...Collection) func(*State) error {
	return func(s *State) error {
		for _, c := range cs {
			if err := s.CreateCollection(c); err != nil {
				return err
			}
		}
		return nil
	}
}

func deleteAll(cs ...Collection) func(*State) error {
	return func(s *State) error {
		for i := len(cs) - 1; i >= 0; i-- {
			if err := s.DeleteCollection(cs[i].ID); err != nil {
				return err
			}
		}
		return nil
	}
}

func addFields(collection string, at map[int]Field, order ...int) func(*State) error {
	return func(s *State) error {
		for _, pos := range order {
			if err := s.AddField(collection, pos, at[pos]); err != nil {
				return err
			}
		}
		return nil
	}
}

func appendFields(collection string, fs ...Field) func(*State) error {
	return func(s *State) error {
		for _, f := range fs {
			if err := s.AppendField(collection, f); err != nil {
				return err
			}
		}
		return nil
	}
}

func removeFields(collection string, ids ...string) func(*State) error {
	return func(s *State) error {
		for _, id := range ids {
			if err := s.RemoveField(collection, id); err != nil {
				return err
			}
		}
		return nil
	}
}

func steps(fns ...func(*State) error) func(*State) error {
	return func(s *State) error {
		for _, fn := range fns {
			if err := fn(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// ruleEdit swaps a set of rules; before must be the rules in force when the
// edit was written so the down step restores them exactly.
func ruleEdit(version int64, name, collection string, before, after []RuleChange) Migration {
	return Migration{
		Version: version,
		Name:    name,
		Up:      func(s *State) error { return s.SetRules(collection, after...) },
		Down:    func(s *State) error { return s.SetRules(collection, before...) },
	}
}

func listView(r rules.Rule) []RuleChange {
	return []RuleChange{ListRule(r), ViewRule(r)}
}

func allRules(list, view, create, update, del rules.Rule) []RuleChange {
	return []RuleChange{ListRule(list), ViewRule(view), CreateRule(create), UpdateRule(update), DeleteRule(del)}
}

// History returns every migration in version order.
func History() []Migration {
	base := baseCollections()

	orderStatusUpdates := Collection{
		ID:   OrderStatusUpdatesID,
		Name: "order_status_updates",
		Type: "base",
		Fields: withTimestamps(
			idField(),
			relation("relation4113142680", "order", OrdersID, false),
			text("text2063623452", "status"),
			date("date2782324286", "timestamp"),
			jsonField("json1915095946", "details"),
		),
	}

	paymentMethods := Collection{
		ID:   PaymentMethodsID,
		Name: "payment_methods",
		Type: "base",
		Fields: []Field{
			relation("user_relation", "user", UsersID, true),
			{ID: "stripe_payment_method", Name: "stripe_payment_method_id", Type: TypeText, Required: true},
			{ID: "last4", Name: "last4", Type: TypeText, Required: true},
			{ID: "brand", Name: "brand", Type: TypeText, Required: true},
			{ID: "exp_month", Name: "exp_month", Type: TypeNumber, Required: true},
			{ID: "exp_year", Name: "exp_year", Type: TypeNumber, Required: true},
			{ID: "is_default", Name: "is_default", Type: TypeBool, Required: true},
			{ID: "created", Name: "created", Type: TypeAutodate},
			{ID: "updated", Name: "updated", Type: TypeAutodate},
		},
		Indexes: []Index{{
			Name:    "idx_unique_payment_method",
			Unique:  true,
			Columns: []string{"user", "stripe_payment_method_id"},
		}},
		ListRule:   expr(ruleOwnsUserField),
		ViewRule:   expr(ruleOwnsUserField),
		CreateRule: expr(rules.Authenticated()),
		UpdateRule: expr(ruleOwnsUserField),
		DeleteRule: expr(ruleOwnsUserField),
	}

	stripeCustomers := Collection{
		ID:   StripeCustomersID,
		Name: "stripe_customers",
		Type: "base",
		Fields: []Field{
			relation("user_relation", "user", UsersID, true),
			{ID: "stripe_customer", Name: "stripe_customer_id", Type: TypeText, Required: true},
			{ID: "created", Name: "created", Type: TypeAutodate},
			{ID: "updated", Name: "updated", Type: TypeAutodate},
		},
		Indexes: []Index{{
			Name:    "idx_unique_customer",
			Unique:  true,
			Columns: []string{"user", "stripe_customer_id"},
		}},
		ListRule:   expr(ruleOwnsUserField),
		ViewRule:   expr(ruleOwnsUserField),
		CreateRule: expr(rules.Authenticated()),
		UpdateRule: expr(ruleOwnsUserField),
		DeleteRule: expr(ruleOwnsUserField),
	}

	storeRoles := Collection{
		ID:   StoreRolesID,
		Name: "store_roles",
		Type: "base",
		Fields: []Field{
			relation("user_relation", "user", UsersID, true),
			relation("store_relation", "store", StoresID, true),
			selectOf("store_role", "role", true, 1, StoreRoleValues),
			{ID: "created", Name: "created", Type: TypeAutodate},
			{ID: "updated", Name: "updated", Type: TypeAutodate},
		},
		Indexes: []Index{{
			Name:    "idx_unique_user_store",
			Unique:  true,
			Columns: []string{"user", "store"},
		}},
		ListRule:   expr(rules.Authenticated()),
		ViewRule:   expr(rules.Authenticated()),
		CreateRule: expr(ruleStoreRolesLegacyAdmin),
		UpdateRule: expr(ruleStoreRolesLegacyAdmin),
		DeleteRule: expr(ruleStoreRolesLegacyAdmin),
	}

	storeZip := text("text1109235014", "zip")
	userAddress := map[int]Field{
		8:  text("text2065657801", "street_1"),
		9:  text("text3793108595", "street_2"),
		10: text("text760939060", "city"),
		11: text("text2744374011", "state"),
		12: text("text1109235014", "zip"),
	}

	return []Migration{
		{
			Version: 1738000000,
			Name:    "init_collections",
			Up:      createAll(base...),
			Down:    deleteAll(base...),
		},
		{
			Version: 1738220918,
			Name:    "created_order_status_updates",
			Up:      createAll(orderStatusUpdates),
			Down:    deleteAll(orderStatusUpdates),
		},
		{
			Version: 1738642024,
			Name:    "updated_stores",
			Up:      addFields(StoresID, map[int]Field{6: storeZip}, 6),
			Down:    removeFields(StoresID, storeZip.ID),
		},
		{
			Version: 1738821971,
			Name:    "updated_users",
			Up:      addFields(UsersID, userAddress, 8, 9, 10, 11, 12),
			Down: removeFields(UsersID,
				"text2065657801", "text3793108595", "text760939060", "text2744374011", "text1109235014"),
		},
		{
			Version: 1739072396,
			Name:    "updated_feature_flags",
			Up: addFields(FeatureFlagsID, map[int]Field{
				3: text("text1843675174", "description"),
				1: boolean("bool4087400498", "enabled"),
			}, 3, 1),
			Down: steps(
				removeFields(FeatureFlagsID, "text1843675174"),
				addFields(FeatureFlagsID, map[int]Field{1: boolean("bool4087400498", "enable")}, 1),
			),
		},
		{
			Version: 1739301952,
			Name:    "created_payment_methods",
			Up:      createAll(paymentMethods),
			Down:    deleteAll(paymentMethods),
		},
		{
			Version: 1739302173,
			Name:    "updated_orders",
			Up: appendFields(OrdersID,
				text("stripe_payment_intent", "stripe_payment_intent_id"),
				relation("stripe_payment_method", "payment_method", PaymentMethodsID, false),
				selectOf("stripe_payment_status", "payment_status", true, 1, PaymentStatuses),
			),
			Down: removeFields(OrdersID, "stripe_payment_intent", "stripe_payment_method", "stripe_payment_status"),
		},
		{
			Version: 1739302174,
			Name:    "created_stripe_customers",
			Up:      createAll(stripeCustomers),
			Down:    deleteAll(stripeCustomers),
		},
		{
			Version: 1739303000,
			Name:    "updated_users_add_roles",
			Up:      addFields(UsersID, map[int]Field{0: selectOf("roles", "roles", false, 3, UserRoles)}, 0),
			Down:    removeFields(UsersID, "roles"),
		},
		ruleEdit(1739303001, "updated_users_rules", UsersID,
			listView(expr(ruleSelf)),
			listView(expr(ruleUsersAdminEq)),
		),
		ruleEdit(1739303002, "updated_orders_rules", "orders",
			listView(expr(ruleOrderOwner)),
			listView(expr(ruleOrdersAdminEq)),
		),
		{
			Version: 1739303004,
			Name:    "created_store_roles",
			Up:      createAll(storeRoles),
			Down:    deleteAll(storeRoles),
		},
		ruleEdit(1739826655, "updated_orders", OrdersID,
			listView(expr(ruleOrdersAdminEq)),
			listView(expr(ruleOrdersAdminLike)),
		),
		ruleEdit(1739830958, "updated_users", UsersID,
			listView(expr(ruleUsersAdminEq)),
			listView(expr(ruleUsersAdminLike)),
		),
		ruleEdit(1739857745, "updated_store_items", StoreItemsID,
			[]RuleChange{UpdateRule(locked)},
			[]RuleChange{UpdateRule(expr(ruleAdminOrBodyStoreAdmin))},
		),
		ruleEdit(1739857799, "updated_order_items", OrderItemsID,
			allRules(
				expr(ruleAdminOrBodyStoreAdmin), expr(ruleAdminOrBodyStoreAdmin), expr(ruleAdminOrBodyStoreAdmin),
				expr(ruleAdminOrBodyStoreAdmin), expr(ruleAdminOrBodyStoreAdmin),
			),
			allRules(expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike)),
		),
		ruleEdit(1739857921, "updated_order_items", OrderItemsID,
			allRules(expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike), expr(ruleAdminLike)),
			allRules(
				expr(ruleOrderItemsLegacyOwner), expr(ruleOrderItemsLegacyOwner), expr(ruleOrderItemsLegacyOwner),
				locked, locked,
			),
		),
		ruleEdit(1739858051, "updated_store_items", StoreItemsID,
			[]RuleChange{CreateRule(locked), DeleteRule(locked)},
			[]RuleChange{CreateRule(expr(ruleAdminOrBodyStoreAdmin)), DeleteRule(expr(ruleAdminOrBodyStoreAdmin))},
		),
		ruleEdit(1739923684, "updated_orders", OrdersID,
			listView(expr(ruleOrdersAdminLike)),
			[]RuleChange{ListRule(expr(ruleAdminOrBodyStoreAdminML)), ViewRule(expr(ruleAdminOrBodyStoreAdmin))},
		),
		ruleEdit(1739925919, "updated_orders", OrdersID,
			[]RuleChange{ListRule(expr(ruleAdminOrBodyStoreAdminML)), ViewRule(expr(ruleAdminOrBodyStoreAdmin))},
			listView(expr(ruleAdminOrBodyItemsStoreAdminML)),
		),
		ruleEdit(1739929423, "updated_store_items", StoreItemsID,
			[]RuleChange{
				CreateRule(expr(ruleAdminOrBodyStoreAdmin)),
				UpdateRule(expr(ruleAdminOrBodyStoreAdmin)),
				DeleteRule(expr(ruleAdminOrBodyStoreAdmin)),
			},
			[]RuleChange{
				CreateRule(expr(ruleStoreItemsStoreAdminML)),
				UpdateRule(expr(ruleStoreItemsStoreAdminML)),
				DeleteRule(expr(ruleStoreItemsStoreAdminML)),
			},
		),
		ruleEdit(1739946005, "updated_orders", OrdersID,
			[]RuleChange{
				ListRule(expr(ruleAdminOrBodyItemsStoreAdminML)),
				ViewRule(expr(ruleAdminOrBodyItemsStoreAdminML)),
				UpdateRule(public),
			},
			[]RuleChange{
				ListRule(expr(ruleOrdersOwnerOrStoreAdminML)),
				ViewRule(expr(ruleOrdersOwnerOrStoreAdminML)),
				UpdateRule(expr(ruleOrdersOwnerOrStoreAdminML)),
			},
		),
		ruleEdit(1739946117, "updated_order_items", OrderItemsID,
			[]RuleChange{CreateRule(expr(ruleOrderItemsLegacyOwner))},
			[]RuleChange{CreateRule(expr(ruleOrderItemsCreateML))},
		),
		{
			Version: 1741227943,
			Name:    "updated_stores",
			Up: addFields(StoresID, map[int]Field{
				7: number("number4283914360", "latitude"),
				8: number("number4283914361", "longitude"),
			}, 7, 8),
			Down: removeFields(StoresID, "number4283914360", "number4283914361"),
		},
		{
			Version: 1741227944,
			Name:    "updated_users",
			Up: addFields(UsersID, map[int]Field{
				13: number("number4283914362", "latitude"),
				14: number("number4283914363", "longitude"),
			}, 13, 14),
			Down: removeFields(UsersID, "number4283914362", "number4283914363"),
		},
		ruleEdit(1741244767, "updated_stores", StoresID,
			[]RuleChange{UpdateRule(locked)},
			[]RuleChange{UpdateRule(expr(ruleStoresBodyStoreAdminML))},
		),
		{
			Version: 1741244876,
			Name:    "updated_users",
			Up:      textCoordinates(UsersID, "number4283914362", "number4283914363", 18),
			Down:    numericCoordinates(UsersID, "number4283914362", "number4283914363"),
		},
		{
			Version: 1741244894,
			Name:    "updated_stores",
			Up:      textCoordinates(StoresID, "number4283914360", "number4283914361", 9),
			Down:    numericCoordinates(StoresID, "number4283914360", "number4283914361"),
		},
		{
			Version: 1741834608,
			Name:    "updated_orders_scheduled_delivery",
			Up: appendFields(OrdersID,
				date("scheduled_delivery_start", "scheduled_delivery_start"),
				date("scheduled_delivery_end", "scheduled_delivery_end"),
			),
			Down: removeFields(OrdersID, "scheduled_delivery_start", "scheduled_delivery_end"),
		},
		{
			Version: 1742000000,
			Name:    "consolidate_access_policies",
			Up:      consolidateUp,
			Down:    consolidateDown,
		},
		{
			Version: 1742000001,
			Name:    "add_courier_dispatch",
			Up: appendFields(OrdersID,
				text("uber_delivery_id", "uber_delivery_id"),
				text("uber_tracking_url", "uber_tracking_url"),
			),
			Down: removeFields(OrdersID, "uber_delivery_id", "uber_tracking_url"),
		},
	}
}

const (
	textLatitudeID  = "text1092145443"
	textLongitudeID = "text2246143851"
)

// textCoordinates renames the numeric coordinates to *_num and adds text
// latitude/longitude at pos and pos+1.
func textCoordinates(collection, latID, lngID string, pos int) func(*State) error {
	return steps(
		addFields(collection, map[int]Field{0: number(latID, "latitude_num")}, 0),
		addFields(collection, map[int]Field{0: number(lngID, "longitude_num")}, 0),
		addFields(collection, map[int]Field{
			pos:     text(textLatitudeID, "latitude"),
			pos + 1: text(textLongitudeID, "longitude"),
		}, pos, pos+1),
	)
}

func numericCoordinates(collection, latID, lngID string) func(*State) error {
	return steps(
		removeFields(collection, textLatitudeID, textLongitudeID),
		addFields(collection, map[int]Field{0: number(latID, "latitude")}, 0),
		addFields(collection, map[int]Field{0: number(lngID, "longitude")}, 0),
	)
}

type ruleSet struct {
	collection                         string
	list, view, create, update, delete rules.Rule
}

func (r ruleSet) changes() []RuleChange {
	return allRules(r.list, r.view, r.create, r.update, r.delete)
}

// Policies is the rule set every collection carries after consolidation.
func Policies() map[string][5]rules.Rule {
	out := make(map[string][5]rules.Rule)
	for _, rs := range consolidatedRules() {
		out[rs.collection] = [5]rules.Rule{rs.list, rs.view, rs.create, rs.update, rs.delete}
	}
	return out
}

func consolidatedRules() []ruleSet {
	admin := rules.GlobalAdmin()
	orderReaders := expr(rules.AnyOf(
		admin,
		rules.OwnedBy("user.id"),
		rules.StoreAdminVia("order_items_via_order.store_item.store.id"),
	))
	itemReaders := expr(rules.AnyOf(
		admin,
		rules.OwnedBy("order.user.id"),
		rules.StoreAdminVia("store_item.store.id"),
	))
	itemManagers := expr(rules.AnyOf(admin, rules.StoreAdminVia("store_item.store.id")))
	inventoryManagers := expr(rules.AnyOf(admin, rules.StoreAdminVia("store.id")))
	statusReaders := expr(rules.AnyOf(
		admin,
		rules.OwnedBy("order.user.id"),
		rules.StoreAdminVia("order.order_items_via_order.store_item.store.id"),
	))
	self := expr(rules.Self())

	return []ruleSet{
		{UsersID, expr(rules.AnyOf(admin, rules.Self())), expr(rules.AnyOf(admin, rules.Self())), public, self, self},
		{StoresID, public, public, expr(admin), expr(rules.AnyOf(admin, rules.StoreAdminVia("id"))), expr(admin)},
		{StoreItemsID, public, public, inventoryManagers, inventoryManagers, inventoryManagers},
		{OrdersID, orderReaders, orderReaders, expr(rules.Authenticated()), orderReaders, expr(admin)},
		{OrderItemsID, itemReaders, itemReaders, itemReaders, itemManagers, itemManagers},
		{OrderStatusUpdatesID, statusReaders, statusReaders, locked, locked, locked},
		{StoreRolesID, expr(rules.Authenticated()), expr(rules.Authenticated()), expr(admin), expr(admin), expr(admin)},
		{FeatureFlagsID, public, public, expr(admin), expr(admin), expr(admin)},
	}
}

// rulesBeforeConsolidation mirrors the state left by the historical edits.
func rulesBeforeConsolidation() []ruleSet {
	return []ruleSet{
		{UsersID, expr(ruleUsersAdminLike), expr(ruleUsersAdminLike), public, expr(ruleSelf), expr(ruleSelf)},
		{StoresID, public, public, locked, expr(ruleStoresBodyStoreAdminML), locked},
		{
			StoreItemsID, public, public,
			expr(ruleStoreItemsStoreAdminML), expr(ruleStoreItemsStoreAdminML), expr(ruleStoreItemsStoreAdminML),
		},
		{
			OrdersID,
			expr(ruleOrdersOwnerOrStoreAdminML), expr(ruleOrdersOwnerOrStoreAdminML),
			expr(rules.Authenticated()), expr(ruleOrdersOwnerOrStoreAdminML), locked,
		},
		{
			OrderItemsID,
			expr(ruleOrderItemsLegacyOwner), expr(ruleOrderItemsLegacyOwner),
			expr(ruleOrderItemsCreateML), locked, locked,
		},
		{OrderStatusUpdatesID, locked, locked, locked, locked, locked},
		{
			StoreRolesID, expr(rules.Authenticated()), expr(rules.Authenticated()),
			expr(ruleStoreRolesLegacyAdmin), expr(ruleStoreRolesLegacyAdmin), expr(ruleStoreRolesLegacyAdmin),
		},
		{FeatureFlagsID, public, public, locked, locked, locked},
	}
}

func applyRuleSets(s *State, sets []ruleSet) error {
	for _, rs := range sets {
		if err := s.SetRules(rs.collection, rs.changes()...); err != nil {
			return err
		}
	}
	return nil
}

func consolidateUp(s *State) error {
	for _, c := range []struct{ id, latID, lngID string }{
		{UsersID, "number4283914362", "number4283914363"},
		{StoresID, "number4283914360", "number4283914361"},
	} {
		if err := numericCoordinates(c.id, c.latID, c.lngID)(s); err != nil {
			return err
		}
	}
	return applyRuleSets(s, consolidatedRules())
}

func consolidateDown(s *State) error {
	if err := textCoordinates(UsersID, "number4283914362", "number4283914363", 18)(s); err != nil {
		return err
	}
	if err := textCoordinates(StoresID, "number4283914360", "number4283914361", 9)(s); err != nil {
		return err
	}
	return applyRuleSets(s, rulesBeforeConsolidation())
}

// Default is the full migration set.
func Default() *Set {
	set, err := NewSet(History()...)
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return set
}

// Final applies the whole history to an empty state.
func Final() (*State, error) {
	st := NewState()
	if err := Default().Apply(st); err != nil {
		return nil, err
	}
	return st, nil
}
