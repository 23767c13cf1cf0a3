package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/policy"
)

const defaultRelevantLimit = 5

type policyApi struct {
	svc      *policy.Service
	validate *validator.Validate
}

func registerPolicyAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := policyApi{
		svc:      deps.PolicySvc,
		validate: deps.Validate,
	}

	pg := g.Group("/policies", jwt)
	pg.GET("", api.query)
	pg.GET("/relevant", api.relevant)
	pg.GET("/:id", api.retrieve)

	// catalog writes are reserved for staff and admins
	pg.POST("", api.create, staffMiddleware())
	pg.PUT("/:id", api.update, staffMiddleware())
	pg.DELETE("/:id", api.destroy, staffMiddleware())
}

// Handlers

func (api *policyApi) query(ctx echo.Context) error {
	pols, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying policies")
	}
	if pols == nil {
		pols = []policy.Policy{}
	}
	return ctx.JSON(http.StatusOK, pols)
}

func (api *policyApi) relevant(ctx echo.Context) error {
	q := core.CleanString(ctx.QueryParam("q"))
	if q == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "q", Error: "this query parameter is required"})
	}
	limit := defaultRelevantLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	matches := api.svc.Relevant(q, limit)
	if matches == nil {
		matches = []policy.Match{}
	}
	return ctx.JSON(http.StatusOK, matches)
}

func (api *policyApi) retrieve(ctx echo.Context) error {
	pol, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pol)
}

func (api *policyApi) create(ctx echo.Context) error {
	var data policy.NewPolicy
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPolicy")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	pol, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating policy")
	}
	return ctx.JSON(http.StatusCreated, pol)
}

func (api *policyApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data policy.UpdatePolicy
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePolicy")
	}
	if err = data.Validate(orig, api.validate); err != nil {
		return err
	}

	pol, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pol)
}

func (api *policyApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting policy")
	}
	return ctx.NoContent(http.StatusNoContent)
}
