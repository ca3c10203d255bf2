package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/teacher"
)

var errTchNotFoundInCtx = errors.New("teacher object not found in echo.Context")

type teacherApi struct {
	svc      *teacher.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := teacherApi{svc: deps.TeacherSvc, validate: deps.Validate}

	tg := g.Group("/teachers")

	// un-authed endpoints
	tg.POST("/register", api.register)
	tg.POST("/password-reset", api.resetPassword)
	tg.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	tg.GET("", api.query, jwt, adminMiddleware())

	// detail endpoints
	dg := tg.Group("/:id", jwt, selfOrAdminMiddleware(account.TypeTeacher), api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.PATCH("/approve", api.approve, adminMiddleware())
	dg.PATCH("/reject", api.reject, adminMiddleware())
}

// Handlers

func (api *teacherApi) register(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSentMsg})
}

func (api *teacherApi) confirmPasswordReset(ctx echo.Context) error {
	var data teacher.ResetTeacherPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetTeacherPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *teacherApi) query(ctx echo.Context) error {
	filter := new(teacher.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) update(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchNotFoundInCtx, "retrieving object from context")
	}

	var data teacher.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err := data.Validate(t, api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) approve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchNotFoundInCtx, "retrieving object from context")
	}

	t, err := api.svc.Approve(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "approving teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) reject(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchNotFoundInCtx, "retrieving object from context")
	}

	t, err := api.svc.Reject(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "rejecting teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return err
		}
		t, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding teacher by ID")
		}
		ctx.Set("object", t)
		return next(ctx)
	}
}
