package actions

import (
	identity "github.com/ostravan/go-identity"
)

// Canonical action id suffixes.
const (
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionView   = "view"
)

// ActionID builds the stable identifier for an operation on a kind,
// e.g. "invoice.edit".
func ActionID(kind, op string) string {
	return kind + "." + op
}

// EditProvider yields create, edit and delete for one entity kind.
// Create gates purely on role membership; edit and delete additionally
// require ownership when the entity exposes an owner.
type EditProvider struct {
	Kind        string
	CreateRoles []string
	BaseOrder   int
}

var _ Provider = (*EditProvider)(nil)

func NewEditProvider(kind string, createRoles ...string) *EditProvider {
	return &EditProvider{Kind: kind, CreateRoles: createRoles}
}

func (p *EditProvider) Kinds() []string {
	return []string{p.Kind}
}

func (p *EditProvider) ActionsFor(principal identity.Principal, entity Kinded) []Description {
	var out []Description

	if p.roleMayCreate(principal) {
		out = append(out, Description{
			ID:        ActionID(p.Kind, ActionCreate),
			Text:      "Create",
			SortOrder: p.BaseOrder,
		})
	}

	if entity == nil {
		return out
	}

	if owns(principal, entity) {
		out = append(out,
			Description{
				ID:        ActionID(p.Kind, ActionEdit),
				Text:      "Edit",
				SortOrder: p.BaseOrder + 1,
			},
			Description{
				ID:        ActionID(p.Kind, ActionDelete),
				Text:      "Delete",
				SortOrder: p.BaseOrder + 2,
			},
		)
	}

	return out
}

func (p *EditProvider) roleMayCreate(principal identity.Principal) bool {
	for _, role := range p.CreateRoles {
		if principal.Role() == role {
			return true
		}
	}
	return false
}

// DetailProvider yields the view action for one entity kind. Owners always
// see details; principals whose role manages other accounts do too.
type DetailProvider struct {
	Kind      string
	BaseOrder int
}

var _ Provider = (*DetailProvider)(nil)

func NewDetailProvider(kind string) *DetailProvider {
	return &DetailProvider{Kind: kind}
}

func (p *DetailProvider) Kinds() []string {
	return []string{p.Kind}
}

func (p *DetailProvider) ActionsFor(principal identity.Principal, entity Kinded) []Description {
	if entity == nil {
		return nil
	}

	if !owns(principal, entity) && len(identity.ManagedRoles(identity.AccountRole(principal.Role()))) == 0 {
		return nil
	}

	return []Description{{
		ID:        ActionID(p.Kind, ActionView),
		Text:      "Details",
		SortOrder: p.BaseOrder,
	}}
}

// owns reports whether the principal is the entity's owner. Entities that
// do not expose an owner are never owned, so edit/delete stay closed.
func owns(principal identity.Principal, entity Kinded) bool {
	owned, ok := entity.(Ownable)
	if !ok {
		return false
	}
	return owned.OwnerID() != "" && owned.OwnerID() == principal.ID()
}
