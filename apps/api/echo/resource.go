package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/services/changefeed"
)

// resourceAPI serves one organization scoped entity kind through its core.Store:
// POST & GET on the collection, GET, PATCH & DELETE on `/:id`.
type resourceAPI[T any, N any, P any] struct {
	kind     string
	parent   string // kind of the parent entity of nested resources
	store    core.Store[T, N, P]
	id       func(T) string
	validate *validator.Validate
	bus      changefeed.Bus
	logger   core.Logger
}

func (api *resourceAPI[T, N, P]) register(g *echo.Group) {
	path := "/" + api.kind
	if api.parent != "" {
		path = fmt.Sprintf("/%s/:parent/%s", api.parent, api.kind)
	}
	rg := g.Group(path)
	rg.POST("", api.create)
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.PATCH("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
}

// bindPayload decodes the request body into dst, then cleans & validates it.
func bindPayload(ctx echo.Context, validate *validator.Validate, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return core.NewValidationError(errors.New("invalid request body"))
		}
		return errors.Wrap(err, "binding request body")
	}
	if p, ok := dst.(core.Payload); ok {
		p.Clean()
	}
	return validate.Struct(dst)
}

// publish announces a committed write. Failures are logged: the write itself succeeded.
func (api *resourceAPI[T, N, P]) publish(ctx context.Context, scope core.Scope, id string, op changefeed.Op) {
	if api.bus == nil {
		return
	}
	key := []string{scope.OrganizationID, api.kind}
	if api.parent != "" {
		key = []string{scope.OrganizationID, api.parent, scope.ParentID, api.kind}
	}
	c := changefeed.Change{
		OrganizationID: scope.OrganizationID,
		Key:            key,
		ID:             id,
		Op:             op,
		ActorID:        scope.ActorID,
		At:             core.NowFunc(),
	}
	if err := api.bus.Publish(ctx, c); err != nil {
		api.logger.Warn(fmt.Sprintf("publishing %s of %s %s: %v", op, api.kind, id, err), err)
	}
}

func (api *resourceAPI[T, N, P]) create(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	var data N
	if err := bindPayload(ctx, api.validate, &data); err != nil {
		return err
	}

	rec, err := api.store.Create(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.kind)
	}
	api.publish(ctx.Request().Context(), scope, api.id(rec), changefeed.OpCreated)
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *resourceAPI[T, N, P]) query(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	recs, err := api.store.GetMany(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrapf(err, "querying %s", api.kind)
	}
	if recs == nil {
		recs = []T{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *resourceAPI[T, N, P]) retrieve(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	rec, err := api.store.GetOne(ctx.Request().Context(), ctx.Param("id"), scope)
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", api.kind)
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *resourceAPI[T, N, P]) update(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	var data P
	if err := bindPayload(ctx, api.validate, &data); err != nil {
		return err
	}

	rec, err := api.store.Update(ctx.Request().Context(), ctx.Param("id"), scope, data)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.kind)
	}
	api.publish(ctx.Request().Context(), scope, api.id(rec), changefeed.OpUpdated)
	return ctx.JSON(http.StatusOK, rec)
}

func (api *resourceAPI[T, N, P]) destroy(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err := api.store.Delete(ctx.Request().Context(), id, scope); err != nil {
		return errors.Wrapf(err, "deleting %s", api.kind)
	}
	api.publish(ctx.Request().Context(), scope, id, changefeed.OpDeleted)
	return ctx.NoContent(http.StatusNoContent)
}
