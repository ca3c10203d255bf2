package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

var passwordResetSentMsg = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type authApi struct {
	auth     *authenticator
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := authApi{auth: auth, validate: deps.Validate}

	// un-authed endpoints
	// TODO: rate limit the login endpoints
	g.POST("/students/login", api.studentLogin)
	g.POST("/teachers/login", api.teacherLogin)
	g.POST("/admins/login", api.adminLogin)

	// authed endpoints
	ag := g.Group("/auth", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
}

func (api *authApi) bindLogin(ctx echo.Context) (LoginRequest, error) {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return LoginRequest{}, errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return LoginRequest{}, err
	}
	return data, nil
}

func (api *authApi) respondToken(ctx echo.Context, p account.Principal) error {
	token, err := api.auth.GenerateToken(p)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Type: p.Type, Name: p.Name})
}

func (api *authApi) studentLogin(ctx echo.Context) error {
	data, err := api.bindLogin(ctx)
	if err != nil {
		return err
	}
	st, err := api.auth.studentSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating student")
	}
	return api.respondToken(ctx, st.Principal())
}

func (api *authApi) teacherLogin(ctx echo.Context) error {
	data, err := api.bindLogin(ctx)
	if err != nil {
		return err
	}
	t, err := api.auth.teacherSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating teacher")
	}
	return api.respondToken(ctx, t.Principal())
}

func (api *authApi) adminLogin(ctx echo.Context) error {
	data, err := api.bindLogin(ctx)
	if err != nil {
		return err
	}
	usr, err := api.auth.userSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating admin")
	}
	return api.respondToken(ctx, usr.Principal())
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Type: claims.UserType, Name: claims.Name})
}

func (api *authApi) me(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"` // username, email or LRN depending on the portal
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string       `json:"token"`
		Type  account.Type `json:"user_type"`
		Name  string       `json:"name"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
