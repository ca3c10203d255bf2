package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/attendance"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/student"
)

var errStdNotFoundInCtx = errors.New("student object not found in echo.Context")

type studentApi struct {
	svc           *student.Service
	gradeSvc      *grade.Service
	attendanceSvc *attendance.Service
	validate      *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:           deps.StudentSvc,
		gradeSvc:      deps.GradeSvc,
		attendanceSvc: deps.AttendanceSvc,
		validate:      deps.Validate,
	}

	sg := g.Group("/students", jwt)
	sg.POST("", api.create, adminMiddleware())
	sg.GET("", api.query, staffMiddleware)
	sg.GET("/with-grades", api.queryWithGrades, staffMiddleware)

	// detail endpoints
	dg := sg.Group("/:id", selfOrStaffMiddleware(account.TypeStudent), api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/with-grades", api.retrieveWithGrades)
	dg.GET("/grade-lock", api.gradeLock, staffMiddleware)
	dg.PUT("/grades", api.replaceGrades, staffMiddleware)
	dg.GET("/attendance", api.attendance)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) bindFilter(ctx echo.Context) (student.QueryFilter, []core.DBOrdering, error) {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return student.QueryFilter{}, nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return *filter, ordering.Orderings, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) queryWithGrades(ctx echo.Context) error {
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	students, err := api.gradeSvc.AllWithGrades(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying students with grades")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) update(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Update(ctx.Request().Context(), st, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) retrieveWithGrades(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	sg, err := api.gradeSvc.StudentWithGrades(ctx.Request().Context(), st.ID)
	if err != nil {
		return errors.Wrap(err, "getting student grades")
	}
	return ctx.JSON(http.StatusOK, sg)
}

func (api *studentApi) gradeLock(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	lock, err := api.gradeSvc.Lock(ctx.Request().Context(), p, st.ID)
	if err != nil {
		return errors.Wrap(err, "getting grade lock")
	}
	return ctx.JSON(http.StatusOK, lock)
}

func (api *studentApi) replaceGrades(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	var data grade.ReplaceGrades
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReplaceGrades")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	sg, err := api.gradeSvc.Replace(ctx.Request().Context(), p, st.ID, data)
	if err != nil {
		return errors.Wrap(err, "replacing grades")
	}
	return ctx.JSON(http.StatusOK, sg)
}

func (api *studentApi) attendance(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	from, err := attendance.ParseDate(ctx.QueryParam("from"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "invalid date, expected YYYY-MM-DD"})
	}
	to, err := attendance.ParseDate(ctx.QueryParam("to"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "invalid date, expected YYYY-MM-DD"})
	}

	records, err := api.attendanceSvc.StudentRecords(ctx.Request().Context(), st.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return err
		}
		st, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding student by ID")
		}
		ctx.Set("object", st)
		return next(ctx)
	}
}
