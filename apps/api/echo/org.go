package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
)

var errUnknownMember = core.NewValidationError(nil, core.FieldError{Field: "email", Error: "no user with this email"})

type orgApi struct {
	svc      *org.Service
	users    *user.Service
	validate *validator.Validate
}

func registerOrgAPI(g *echo.Group, og *echo.Group, api orgApi) {
	g.POST("", api.create)
	g.GET("", api.query)

	og.GET("", api.retrieve)
	og.GET("/members", api.queryMembers)
	og.POST("/members", api.addMember)
}

func (api *orgApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	var data org.NewOrganization
	if err := bindPayload(ctx, api.validate, &data); err != nil {
		return err
	}

	o, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *orgApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	orgs, err := api.svc.QueryForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying organizations")
	}
	if orgs == nil {
		orgs = []org.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	m, err := getContextMembership(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.Get(ctx.Request().Context(), m.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "retrieving organization")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) queryMembers(ctx echo.Context) error {
	m, err := getContextMembership(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Members(ctx.Request().Context(), m.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []org.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *orgApi) addMember(ctx echo.Context) error {
	actor, err := getContextMembership(ctx)
	if err != nil {
		return err
	}
	var data org.NewMember
	if err := bindPayload(ctx, api.validate, &data); err != nil {
		return err
	}

	usr, err := api.users.GetByEmail(ctx.Request().Context(), data.Email)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return errUnknownMember
		}
		return errors.Wrap(err, "finding user by email")
	}
	m, err := api.svc.AddMember(ctx.Request().Context(), actor, usr.ID, data.Role)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, m)
}
