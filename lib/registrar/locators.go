package registrar

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
)

// Role names an element of the registration portal by what it is for,
// the selector that finds it lives in Locators.
type Role string

const (
	RoleLoginUsername      Role = "login.username"
	RoleLoginPassword      Role = "login.password"
	RoleLoginSubmit        Role = "login.submit"
	RoleTermSelect         Role = "term.select"
	RoleTermSubmit         Role = "term.submit"
	RoleDropRowSelect      Role = "drop.row_select"
	RoleAddCrnField        Role = "add.crn_field"
	RoleRegistrationSubmit Role = "registration.submit"
)

var allRoles = []Role{
	RoleLoginUsername,
	RoleLoginPassword,
	RoleLoginSubmit,
	RoleTermSelect,
	RoleTermSubmit,
	RoleDropRowSelect,
	RoleAddCrnField,
	RoleRegistrationSubmit,
}

// indexed roles are templates taking a single integer through %d
var indexedRoles = map[Role]bool{
	RoleDropRowSelect: true,
	RoleAddCrnField:   true,
}

// Locators maps every role to a playwright selector.
type Locators map[Role]string

func DefaultLocators() Locators {
	return Locators{
		RoleLoginUsername:      "#username",
		RoleLoginPassword:      "#password",
		RoleLoginSubmit:        `[name="submit"]`,
		RoleTermSelect:         "#term_id",
		RoleTermSubmit:         "xpath=//form[1]/input[@value='Submit']",
		RoleDropRowSelect:      "xpath=//form[1]/table[1]/tbody[1]/tr[%d]/td[2]/select[1]",
		RoleAddCrnField:        "#crn_id%d",
		RoleRegistrationSubmit: "xpath=(//input[@value='Submit Changes'])[1]",
	}
}

// WithOverrides returns a copy of l where every role in `overrides`
// takes the overriding selector.
func (l Locators) WithOverrides(overrides map[string]string) (Locators, error) {
	merged := Locators{}
	for role, selector := range l {
		merged[role] = selector
	}

	converted := Locators{}
	for role, selector := range overrides {
		converted[Role(role)] = selector
	}
	err := mergo.Merge(&merged, converted, mergo.WithOverride)
	if err != nil {
		return nil, err
	}

	err = merged.Validate()
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (l Locators) Validate() error {
	known := map[Role]bool{}
	for _, role := range allRoles {
		known[role] = true
		selector := strings.TrimSpace(l[role])
		if selector == "" {
			return fmt.Errorf("no selector for role %s", role)
		}
		placeholders := strings.Count(selector, "%d")
		if indexedRoles[role] && placeholders != 1 {
			return fmt.Errorf("selector for %s must contain exactly one %%d, got %q", role, selector)
		}
		if !indexedRoles[role] && placeholders != 0 {
			return fmt.Errorf("selector for %s must not contain %%d, got %q", role, selector)
		}
	}
	for role := range l {
		if !known[role] {
			return fmt.Errorf("unknown locator role %q", role)
		}
	}
	return nil
}

func (l Locators) Selector(role Role) string {
	return l[role]
}

// Indexed renders the selector of an indexed role for position i.
func (l Locators) Indexed(role Role, i int) string {
	return fmt.Sprintf(l[role], i)
}

// Roles returns the roles in l, sorted.
func (l Locators) Roles() []Role {
	roles := make([]Role, 0, len(l))
	for role := range l {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roles[i] < roles[j]
	})
	return roles
}

// IsIndexed reports whether the selector of `role` takes a position.
func IsIndexed(role Role) bool {
	return indexedRoles[role]
}
