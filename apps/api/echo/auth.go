package echoapi

import (
	"context"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
)

const (
	tokenContextKey     = "userToken"
	principalContextKey = "principal"
	tokenAudience       = "eskwela"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64        `json:"oriat,omitempty"`
	UserType     account.Type `json:"user_type"` // -> portal
	Name         string       `json:"name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Roles        []string     `json:"roles,omitempty"`
}

// Principal returns the account the claims were issued to.
func (c Claims) Principal() (account.Principal, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || !c.UserType.Valid() {
		return account.Principal{}, errUnauthorized
	}
	return account.Principal{ID: id, Type: c.UserType, Name: c.Name, Email: c.Email, Roles: c.Roles}, nil
}

// authenticator issues and refreshes the JWTs of every kind of account.
type authenticator struct {
	appName      string
	expiration   time.Duration
	refreshLimit time.Duration
	jwtConfig    middleware.JWTConfig

	userSvc    *user.Service
	studentSvc *student.Service
	teacherSvc *teacher.Service
}

func newAuthenticator(conf *core.Config, userSvc *user.Service, studentSvc *student.Service, teacherSvc *teacher.Service) *authenticator {
	return &authenticator{
		appName:      conf.AppName,
		expiration:   conf.Server.JWTExpirationDelta,
		refreshLimit: conf.Server.JWTRefreshExpirationDelta,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
		},
		userSvc:    userSvc,
		studentSvc: studentSvc,
		teacherSvc: teacherSvc,
	}
}

func (a *authenticator) claimsFor(p account.Principal, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   strconv.FormatInt(p.ID, 10),
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		UserType:     p.Type,
		Name:         p.Name,
		Email:        p.Email,
		Roles:        p.Roles,
	}
}

// GenerateToken generates a signed JWT token string for the account p.
func (a *authenticator) GenerateToken(p account.Principal, origIat ...int64) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, a.claimsFor(p, origIat...))

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// lookup returns the current state of the account p, failing when it is no longer allowed to log in.
func (a *authenticator) lookup(ctx context.Context, p account.Principal) (account.Principal, error) {
	switch p.Type {
	case account.TypeAdmin:
		usr, err := a.userSvc.GetByID(ctx, p.ID)
		if err != nil {
			return account.Principal{}, err
		}
		if !usr.IsActive {
			return account.Principal{}, account.ErrAccountInactive
		}
		return usr.Principal(), nil
	case account.TypeTeacher:
		t, err := a.teacherSvc.GetByID(ctx, p.ID)
		if err != nil {
			return account.Principal{}, err
		}
		if !t.IsApproved() {
			return account.Principal{}, account.ErrAccountInactive
		}
		return t.Principal(), nil
	case account.TypeStudent:
		st, err := a.studentSvc.GetByID(ctx, p.ID)
		if err != nil {
			return account.Principal{}, err
		}
		return st.Principal(), nil
	default:
		return account.Principal{}, errUnauthorized
	}
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	p, err := claims.Principal()
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshLimit)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	// the account may have been deleted or deactivated since
	if p, err = a.lookup(ctx.Request().Context(), p); err != nil {
		if core.IsNotFound(err) {
			return "", errUnauthorized
		}
		return "", err
	}
	return a.GenerateToken(p, claims.OrigIssuedAt)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextPrincipal returns the authenticated account of the request.
func getContextPrincipal(ctx echo.Context) (account.Principal, error) {
	if p, ok := ctx.Get(principalContextKey).(account.Principal); ok {
		return p, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return account.Principal{}, err
	}
	p, err := claims.Principal()
	if err != nil {
		return account.Principal{}, err
	}
	ctx.Set(principalContextKey, p)
	return p, nil
}
