package list

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/user"
)

var (
	ErrNotFound      = core.NewNotFoundError("list not found")
	ErrItemNotFound  = core.NewNotFoundError("list item not found")
	ErrShareNotFound = core.NewNotFoundError("list share not found")
	ErrDuplicateItem = core.NewConflictError("this entry is already in the list")
	ErrAlreadyShared = core.NewConflictError("this list is already shared with this user")

	errWrongTargetKind = func(t Type) error {
		return core.NewValidationError(nil, core.FieldError{Field: "target", Error: fmt.Sprintf("this list only accepts %s entries", t)})
	}
	errMissingTarget = core.NewValidationError(nil, core.FieldError{Field: "target", Error: "this field is required"})
	errUnknownTarget = core.NewValidationError(nil, core.FieldError{Field: "target", Error: "unknown entry"})
	errNotAMember    = core.NewValidationError(nil, core.FieldError{Field: "email", Error: "user is not a member of this organization"})
	errShareOwner    = core.NewValidationError(nil, core.FieldError{Field: "email", Error: "the owner already has access to this list"})
)

type (
	Repository interface {
		CreateList(ctx context.Context, l List) (List, error)
		// QueryLists returns the lists of the organization the actor in scope owns or was granted.
		QueryLists(ctx context.Context, scope core.Scope) ([]List, error)
		GetList(ctx context.Context, id string, scope core.Scope) (List, error)
		UpdateList(ctx context.Context, l List) (List, error)
		DeleteList(ctx context.Context, id string, scope core.Scope) error

		CreateItem(ctx context.Context, it Item) (Item, error)
		QueryItems(ctx context.Context, scope core.Scope) ([]Item, error)
		GetItem(ctx context.Context, id string, scope core.Scope) (Item, error)
		UpdateItem(ctx context.Context, it Item) (Item, error)
		DeleteItem(ctx context.Context, id string, scope core.Scope) error
		// TargetExists reports whether t references an entity of the organization in scope.
		TargetExists(ctx context.Context, t Target, scope core.Scope) (bool, error)

		CreateShare(ctx context.Context, s Share) (Share, error)
		QueryShares(ctx context.Context, listID string) ([]Share, error)
		IsGrantee(ctx context.Context, listID, userID string) (bool, error)
		DeleteShare(ctx context.Context, listID, userID string) error
	}

	// Members tells whether a user belongs to an organization.
	Members interface {
		IsMember(ctx context.Context, orgID, userID string) (bool, error)
	}

	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	Service struct {
		repo Repository
	}

	ItemService struct {
		repo Repository
	}

	ShareService struct {
		repo    Repository
		members Members
		users   Users
		mailSvc core.EmailService
	}
)

var (
	_ core.Store[List, NewList, UpdateList] = (*Service)(nil)
	_ core.Store[Item, NewItem, UpdateItem] = (*ItemService)(nil)
)

// access rights of the actor in scope on a list.
type rights int

const (
	rightsNone rights = iota
	rightsGrantee
	rightsOwner
)

// visibleList loads a list and the rights of the actor on it.
// Lists the actor neither owns nor was granted are reported as not found.
func visibleList(ctx context.Context, repo Repository, id string, scope core.Scope) (List, rights, error) {
	l, err := repo.GetList(ctx, id, scope)
	if err != nil {
		return List{}, rightsNone, err
	}
	if l.OwnerID == scope.ActorID {
		return l, rightsOwner, nil
	}
	ok, err := repo.IsGrantee(ctx, l.ID, scope.ActorID)
	if err != nil {
		return List{}, rightsNone, errors.Wrap(err, "checking list share")
	}
	if !ok {
		return List{}, rightsNone, ErrNotFound
	}
	return l, rightsGrantee, nil
}

// ownedList is visibleList restricted to the owner. Grantees get core.ErrAccessDenied.
func ownedList(ctx context.Context, repo Repository, id string, scope core.Scope) (List, error) {
	l, r, err := visibleList(ctx, repo, id, scope)
	if err != nil {
		return List{}, err
	}
	if r != rightsOwner {
		return List{}, core.ErrAccessDenied
	}
	return l, nil
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, scope core.Scope, nl NewList) (List, error) {
	return svc.repo.CreateList(ctx, Build(core.NewID(), scope, nl, core.NowFunc()))
}

func (svc *Service) GetMany(ctx context.Context, scope core.Scope) ([]List, error) {
	return svc.repo.QueryLists(ctx, scope)
}

func (svc *Service) GetOne(ctx context.Context, id string, scope core.Scope) (List, error) {
	l, _, err := visibleList(ctx, svc.repo, id, scope)
	return l, err
}

// Update renames a list. Owner only.
func (svc *Service) Update(ctx context.Context, id string, scope core.Scope, ul UpdateList) (List, error) {
	l, err := ownedList(ctx, svc.repo, id, scope)
	if err != nil {
		return List{}, err
	}
	ul.Apply(&l)
	l.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateList(ctx, l)
}

// Delete removes a list with its items and shares. Owner only.
func (svc *Service) Delete(ctx context.Context, id string, scope core.Scope) error {
	if _, err := ownedList(ctx, svc.repo, id, scope); err != nil {
		return err
	}
	return svc.repo.DeleteList(ctx, id, scope)
}

func NewItemService(repo Repository) *ItemService {
	return &ItemService{repo: repo}
}

// Create adds an entry to the list in scope.ParentID. The target must be of the list's type,
// belong to the list's organization and not already be in the list.
func (svc *ItemService) Create(ctx context.Context, scope core.Scope, ni NewItem) (Item, error) {
	l, _, err := visibleList(ctx, svc.repo, scope.ParentID, scope)
	if err != nil {
		return Item{}, err
	}
	if ni.Target.IsZero() {
		return Item{}, errMissingTarget
	}
	if ni.Target.Kind() != l.Type {
		return Item{}, errWrongTargetKind(l.Type)
	}
	ok, err := svc.repo.TargetExists(ctx, ni.Target, scope)
	if err != nil {
		return Item{}, errors.Wrap(err, "checking list item target")
	}
	if !ok {
		return Item{}, errUnknownTarget
	}
	it, err := svc.repo.CreateItem(ctx, BuildItem(core.NewID(), scope, ni, core.NowFunc()))
	if core.KindOf(err) == core.KindConflict {
		return Item{}, ErrDuplicateItem
	}
	return it, err
}

func (svc *ItemService) GetMany(ctx context.Context, scope core.Scope) ([]Item, error) {
	if _, _, err := visibleList(ctx, svc.repo, scope.ParentID, scope); err != nil {
		return nil, err
	}
	return svc.repo.QueryItems(ctx, scope)
}

func (svc *ItemService) GetOne(ctx context.Context, id string, scope core.Scope) (Item, error) {
	if _, _, err := visibleList(ctx, svc.repo, scope.ParentID, scope); err != nil {
		return Item{}, err
	}
	return svc.repo.GetItem(ctx, id, scope)
}

func (svc *ItemService) Update(ctx context.Context, id string, scope core.Scope, ui UpdateItem) (Item, error) {
	it, err := svc.GetOne(ctx, id, scope)
	if err != nil {
		return Item{}, err
	}
	ui.Apply(&it)
	it.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateItem(ctx, it)
}

func (svc *ItemService) Delete(ctx context.Context, id string, scope core.Scope) error {
	if _, _, err := visibleList(ctx, svc.repo, scope.ParentID, scope); err != nil {
		return err
	}
	return svc.repo.DeleteItem(ctx, id, scope)
}

func NewShareService(repo Repository, members Members, users Users, mailSvc core.EmailService) *ShareService {
	return &ShareService{repo: repo, members: members, users: users, mailSvc: mailSvc}
}

// Grant shares the list in scope.ParentID with the organization member owning ns.Email
// and notifies them by email. Owner only.
func (svc *ShareService) Grant(ctx context.Context, scope core.Scope, ns NewShare) (Share, error) {
	l, err := ownedList(ctx, svc.repo, scope.ParentID, scope)
	if err != nil {
		return Share{}, err
	}
	grantee, err := svc.users.GetByEmail(ctx, ns.Email)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return Share{}, errNotAMember
		}
		return Share{}, errors.Wrap(err, "finding grantee")
	}
	if grantee.ID == l.OwnerID {
		return Share{}, errShareOwner
	}
	ok, err := svc.members.IsMember(ctx, l.OrganizationID, grantee.ID)
	if err != nil {
		return Share{}, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return Share{}, errNotAMember
	}

	s, err := svc.repo.CreateShare(ctx, Share{ListID: l.ID, UserID: grantee.ID, CreatedAt: core.NowFunc()})
	if err != nil {
		if core.KindOf(err) == core.KindConflict {
			return Share{}, ErrAlreadyShared
		}
		return Share{}, err
	}
	svc.notify(ctx, l, grantee)
	return s, nil
}

func (svc *ShareService) notify(ctx context.Context, l List, grantee user.User) {
	if svc.mailSvc == nil {
		return
	}
	ownerName := "A colleague"
	if owner, err := svc.users.GetByID(ctx, l.OwnerID); err == nil {
		ownerName = owner.Name
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: grantee.Name, Address: grantee.Email}},
		Subject:      fmt.Sprintf("%s shared a list with you", ownerName),
		TemplateName: "list_shared",
		TemplateData: ShareNotice{
			OrganizationID: l.OrganizationID,
			ListID:         l.ID,
			ListName:       l.Name,
			OwnerName:      ownerName,
			GranteeName:    grantee.Name,
		},
	})
}

// Grants lists the shares of the list in scope.ParentID. Owner only.
func (svc *ShareService) Grants(ctx context.Context, scope core.Scope) ([]Share, error) {
	l, err := ownedList(ctx, svc.repo, scope.ParentID, scope)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryShares(ctx, l.ID)
}

// Revoke removes the share of userID on the list in scope.ParentID. Owner only.
func (svc *ShareService) Revoke(ctx context.Context, userID string, scope core.Scope) error {
	l, err := ownedList(ctx, svc.repo, scope.ParentID, scope)
	if err != nil {
		return err
	}
	return svc.repo.DeleteShare(ctx, l.ID, userID)
}
