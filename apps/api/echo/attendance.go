package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/attendance"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc, validate: deps.Validate}

	g.POST("/attendance/check-in", api.checkIn, jwt, studentMiddleware)

	// not a group: a second "/classes/:id" group would shadow the class detail routes
	g.POST("/classes/:id/check-in-sessions", api.openCheckIn, jwt, staffMiddleware)
	g.POST("/classes/:id/attendance", api.record, jwt, staffMiddleware)
	g.GET("/classes/:id/attendance", api.classRecords, jwt, staffMiddleware)
}

// Handlers

func (api *attendanceApi) openCheckIn(ctx echo.Context) error {
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.OpenCheckIn(ctx.Request().Context(), p, classID)
	if err != nil {
		return errors.Wrap(err, "opening check-in session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.CheckIn(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "checking in")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) record(ctx echo.Context) error {
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data attendance.ManualRecords
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualRecords")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.Record(ctx.Request().Context(), p, classID, data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) classRecords(ctx echo.Context) error {
	classID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	date, err := attendance.ParseDate(ctx.QueryParam("date"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "invalid date, expected YYYY-MM-DD"})
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.ClassRecords(ctx.Request().Context(), p, classID, date)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}
