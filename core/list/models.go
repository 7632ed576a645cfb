package list

import (
	"time"

	"github.com/trezcool/kumbukumbu/core"
)

// Resource segments.
const (
	Kind      = "lists"
	ItemKind  = "items"
	ShareKind = "shares"
)

// List is a curated collection of entities of one Type. It is visible to its owner and grantees only.
type List struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	Name           string    `json:"name" db:"name"`
	Type           Type      `json:"type" db:"type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewList struct {
	Name string `json:"name" validate:"required,notblank,max=120"`
	Type Type   `json:"type" validate:"required,enum"`
}

func (nl *NewList) Clean() {
	nl.Name = core.CleanString(nl.Name)
	nl.Type = Type(core.CleanString(string(nl.Type), true /* lower */))
}

// UpdateList renames a list. The type of a list never changes.
type UpdateList struct {
	Name *string `json:"name" validate:"omitempty,notblank,max=120"`
}

func (ul *UpdateList) Clean() {
	if ul.Name != nil {
		*ul.Name = core.CleanString(*ul.Name)
	}
}

func (ul UpdateList) Apply(l *List) {
	if ul.Name != nil {
		l.Name = *ul.Name
	}
}

// Build returns the List a NewList describes. The actor in scope becomes the owner.
func Build(id string, scope core.Scope, nl NewList, now time.Time) List {
	return List{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		OwnerID:        scope.ActorID,
		Name:           nl.Name,
		Type:           nl.Type,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func Less(a, b List) bool {
	if a.Name == b.Name {
		return a.ID < b.ID
	}
	return a.Name < b.Name
}

// Item is a member of a List.
type Item struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ListID         string    `json:"list_id"`
	Target         Target    `json:"target"`
	Note           string    `json:"note"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// NewItem must hold a Target: register it with core.RequireVariants.
type NewItem struct {
	Target Target `json:"target"`
	Note   string `json:"note" validate:"max=1000"`
}

func (ni *NewItem) Clean() { ni.Note = core.CleanString(ni.Note) }

type UpdateItem struct {
	Note *string `json:"note" validate:"omitempty,max=1000"`
}

func (ui *UpdateItem) Clean() {
	if ui.Note != nil {
		*ui.Note = core.CleanString(*ui.Note)
	}
}

func (ui UpdateItem) Apply(it *Item) {
	if ui.Note != nil {
		it.Note = *ui.Note
	}
}

// BuildItem returns the Item a NewItem describes. scope.ParentID is the list.
func BuildItem(id string, scope core.Scope, ni NewItem, now time.Time) Item {
	return Item{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		ListID:         scope.ParentID,
		Target:         ni.Target,
		Note:           ni.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// LessItem keeps items in insertion order.
func LessItem(a, b Item) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Share grants a user access to a list.
type Share struct {
	ListID    string    `json:"list_id" db:"list_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

type NewShare struct {
	Email string `json:"email" validate:"required,email"`
}

func (ns *NewShare) Clean() { ns.Email = core.CleanString(ns.Email, true /* lower */) }

// ShareNotice is the data of the "list_shared" email template.
type ShareNotice struct {
	OrganizationID string
	ListID         string
	ListName       string
	OwnerName      string
	GranteeName    string
}
