// Package actions computes which operations a principal may perform
// against a target entity. Providers register for entity kinds and yield
// action descriptions; the manager concatenates and orders them so
// callers get a stable, displayable list.
package actions

import (
	"sort"

	identity "github.com/ostravan/go-identity"
)

// Description is a single permitted operation: a stable id the transport
// layer can dispatch on, display text, and a sort order for rendering.
type Description struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	SortOrder int    `json:"sort_order"`
}

// Kinded is the capability an entity exposes so providers can match it
// without reflection.
type Kinded interface {
	EntityKind() string
}

// Ownable marks entities with an owning account. Edit and delete gate on
// the principal owning the entity, regardless of role.
type Ownable interface {
	OwnerID() string
}

// Provider yields the actions a principal may perform on entities of the
// kinds it declares. A nil entity asks about kind-level actions (create).
type Provider interface {
	Kinds() []string
	ActionsFor(principal identity.Principal, entity Kinded) []Description
}

// Manager is the provider registry. Evaluation concatenates every
// matching provider's yield and stable-sorts by SortOrder so equal orders
// keep registration order.
type Manager struct {
	providers []Provider
	logger    identity.Logger
}

type Option func(*Manager)

func WithLogger(l identity.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: identity.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Register adds a provider to the registry. Registration order breaks
// sort-order ties.
func (m *Manager) Register(p Provider) *Manager {
	if p != nil {
		m.providers = append(m.providers, p)
	}
	return m
}

// Actions returns every operation the principal may perform on the
// entity, ordered by each action's declared sort order. Use KindActions
// when there is no entity in hand yet.
func (m *Manager) Actions(principal identity.Principal, entity Kinded) []Description {
	if principal == nil || entity == nil {
		return nil
	}
	return m.collect(principal, entity.EntityKind(), entity)
}

// KindActions answers for a kind when the caller holds no entity yet.
// Providers see a nil entity and yield their kind-level actions, which is
// how create gets offered before anything exists.
func (m *Manager) KindActions(principal identity.Principal, kind string) []Description {
	if principal == nil || kind == "" {
		return nil
	}
	return m.collect(principal, kind, nil)
}

func (m *Manager) collect(principal identity.Principal, kind string, entity Kinded) []Description {
	var out []Description

	for _, p := range m.providers {
		if !providerHandles(p, kind) {
			continue
		}
		out = append(out, p.ActionsFor(principal, entity)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})

	return out
}

// IsOperationAllowed reports whether the action id appears in the
// principal's permitted set for the entity.
func (m *Manager) IsOperationAllowed(principal identity.Principal, actionID string, entity Kinded) bool {
	for _, a := range m.Actions(principal, entity) {
		if a.ID == actionID {
			return true
		}
	}
	return false
}

func providerHandles(p Provider, kind string) bool {
	for _, k := range p.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
