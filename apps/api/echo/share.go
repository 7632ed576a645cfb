package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core/list"
)

// shareApi serves `/lists/:parent/shares`. Shares are identified by the grantee's user ID.
type shareApi struct {
	svc      *list.ShareService
	validate *validator.Validate
}

func registerShareAPI(g *echo.Group, api shareApi) {
	sg := g.Group("/" + list.Kind + "/:parent/" + list.ShareKind)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.DELETE("/:id", api.destroy)
}

func (api *shareApi) create(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	var data list.NewShare
	if err := bindPayload(ctx, api.validate, &data); err != nil {
		return err
	}

	s, err := api.svc.Grant(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrap(err, "sharing list")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *shareApi) query(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	shares, err := api.svc.Grants(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "querying list shares")
	}
	if shares == nil {
		shares = []list.Share{}
	}
	return ctx.JSON(http.StatusOK, shares)
}

func (api *shareApi) destroy(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Revoke(ctx.Request().Context(), ctx.Param("id"), scope); err != nil {
		return errors.Wrap(err, "revoking list share")
	}
	return ctx.NoContent(http.StatusNoContent)
}
