package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core/plan"
)

type planApi struct {
	svc      *plan.Service
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := planApi{
		svc:      deps.PlanSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/plans", jwt)
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)

	pg.POST("/:id/items", api.addItem)
	pg.PUT("/:id/items/:itemID", api.updateItem)
	pg.DELETE("/:id/items/:itemID", api.removeItem)

	pg.POST("/:id/collaborators", api.addCollaborator)
	pg.DELETE("/:id/collaborators/:userID", api.removeCollaborator)
}

// Handlers

func (api *planApi) create(ctx echo.Context) error {
	var data plan.NewPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, pln)
}

func (api *planApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(plan.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []plan.ProgramPlan{})
	}
	filter.Clean()

	plans, err := api.svc.Filter(ctx.Request().Context(), claims.Subject, filter)
	if err != nil {
		return errors.Wrap(err, "querying plans")
	}
	if plans == nil {
		plans = []plan.ProgramPlan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}

func (api *planApi) update(ctx echo.Context) error {
	var data plan.UpdatePlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}

func (api *planApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Checklist

func (api *planApi) addItem(ctx echo.Context) error {
	var data plan.NewChecklistItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChecklistItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.AddItem(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, pln)
}

func (api *planApi) updateItem(ctx echo.Context) error {
	var data plan.UpdateChecklistItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChecklistItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.UpdateItem(ctx.Request().Context(), ctx.Param("id"), ctx.Param("itemID"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}

func (api *planApi) removeItem(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.RemoveItem(ctx.Request().Context(), ctx.Param("id"), ctx.Param("itemID"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}

// Collaborators

func (api *planApi) addCollaborator(ctx echo.Context) error {
	var data plan.NewCollaborator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCollaborator")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.AddCollaborator(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}

func (api *planApi) removeCollaborator(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pln, err := api.svc.RemoveCollaborator(ctx.Request().Context(), ctx.Param("id"), claims.Subject, ctx.Param("userID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pln)
}
