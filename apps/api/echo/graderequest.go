package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/graderequest"
)

type gradeRequestApi struct {
	svc      *graderequest.Service
	validate *validator.Validate
}

func registerGradeRequestAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := gradeRequestApi{svc: deps.GradeRequestSvc, validate: deps.Validate}

	rg := g.Group("/grade-requests", jwt, staffMiddleware)
	rg.POST("", api.create, teacherMiddleware)
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.PATCH("/:id/decide", api.decide, adminMiddleware())
}

// Handlers

func (api *gradeRequestApi) create(ctx echo.Context) error {
	var data graderequest.NewGradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGradeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	gr, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating grade request")
	}
	return ctx.JSON(http.StatusCreated, gr)
}

func (api *gradeRequestApi) query(ctx echo.Context) error {
	filter := new(graderequest.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	requests, err := api.svc.Query(ctx.Request().Context(), p, *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grade requests")
	}
	return ctx.JSON(http.StatusOK, requests)
}

func (api *gradeRequestApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	gr, err := api.svc.Get(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting grade request")
	}
	return ctx.JSON(http.StatusOK, gr)
}

func (api *gradeRequestApi) decide(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data graderequest.Decision
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	gr, err := api.svc.Decide(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "deciding grade request")
	}
	return ctx.JSON(http.StatusOK, gr)
}
