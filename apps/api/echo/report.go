package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc}

	rg := g.Group("/reports", jwt, adminMiddleware())
	rg.GET("/summary", api.summary)
}

func (api *reportApi) summary(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.Summary(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building summary report")
	}
	return ctx.JSON(http.StatusOK, summary)
}
