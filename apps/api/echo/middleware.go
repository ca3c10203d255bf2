package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/eskwela/core/account"
)

// accountMiddleware only lets accounts of the given types through.
func accountMiddleware(types ...account.Type) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			for _, typ := range types {
				if p.Type == typ {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware only lets admins holding one of roles through (any admin when none given).
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			if p.IsAdmin() && principalHasAnyRole(p, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var (
	staffMiddleware   = accountMiddleware(account.TypeAdmin, account.TypeTeacher)
	teacherMiddleware = accountMiddleware(account.TypeTeacher)
	studentMiddleware = accountMiddleware(account.TypeStudent)
)

// selfOrStaffMiddleware lets staff through, and accounts of type typ whose ID is the :id path param.
func selfOrStaffMiddleware(typ account.Type) echo.MiddlewareFunc {
	return selfOrMiddleware(typ, account.Principal.IsStaff)
}

// selfOrAdminMiddleware lets admins through, and accounts of type typ whose ID is the :id path param.
func selfOrAdminMiddleware(typ account.Type) echo.MiddlewareFunc {
	return selfOrMiddleware(typ, account.Principal.IsAdmin)
}

func selfOrMiddleware(typ account.Type, allowed func(account.Principal) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			if allowed(p) {
				return next(ctx)
			}
			id, err := paramID(ctx, "id")
			if err != nil {
				return err
			}
			if p.Type == typ && p.ID == id {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func principalHasAnyRole(p account.Principal, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		for _, r := range p.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}
