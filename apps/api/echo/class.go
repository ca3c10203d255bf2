package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/class"
)

var errClsNotFoundInCtx = errors.New("class object not found in echo.Context")

type classApi struct {
	svc      *class.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := classApi{svc: deps.ClassSvc, validate: deps.Validate}

	cg := g.Group("/classes", jwt, staffMiddleware)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/students", api.students)
	dg.POST("/enroll", api.enroll, api.managerMiddleware)
	dg.POST("/unenroll", api.unenroll, api.managerMiddleware)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) query(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) update(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) students(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	students, err := api.svc.Students(ctx.Request().Context(), c)
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) enroll(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	var data class.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	students, err := api.svc.Enroll(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) unenroll(ctx echo.Context) error {
	c, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	var data class.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), c, data.StudentIDs...); err != nil {
		return errors.Wrap(err, "unenrolling students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return err
		}
		c, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding class by ID")
		}
		ctx.Set("object", c)
		return next(ctx)
	}
}

// managerMiddleware only lets admins and the adviser of the context class through.
func (api *classApi) managerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		c, ok := ctx.Get("object").(class.Class)
		if !ok {
			return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
		}
		p, err := getContextPrincipal(ctx)
		if err != nil {
			return err
		}
		if err = class.CheckManager(p, c); err != nil {
			return err
		}
		return next(ctx)
	}
}
