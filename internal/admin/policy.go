package admin

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

type Action string

const (
	ActionView   Action = "view"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// staffChangeable lists the entities plain staff may edit.
var staffChangeable = []string{EntityOrders, EntityShops, EntityProductInfos, EntityCategories}

// Policy answers whether a staff role may perform an action on an entity.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy loads the built-in panel rules: staff views everything and edits
// the catalog and orders, superusers may do anything.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("init enforcer: %w", err)
	}

	rules := [][]string{
		{string(enums.StaffRoleStaff), "*", string(ActionView)},
		{string(enums.StaffRoleSuperuser), "*", "*"},
	}
	for _, entity := range staffChangeable {
		rules = append(rules, []string{string(enums.StaffRoleStaff), entity, string(ActionChange)})
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicy(string(enums.StaffRoleSuperuser), string(enums.StaffRoleStaff)); err != nil {
		return nil, fmt.Errorf("load role hierarchy: %w", err)
	}
	return &Policy{enforcer: enforcer}, nil
}

func (p *Policy) Allowed(role enums.StaffRole, entity string, action Action) (bool, error) {
	if !role.IsValid() {
		return false, nil
	}
	return p.enforcer.Enforce(string(role), entity, string(action))
}
