package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/school"
)

var (
	// appJWTConfig is the default JWT auth middleware config. The signing key
	// is set by NewServer from the app config.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "schoolToken",
		Claims:        new(Claims),
	}
	contextSchoolKey = "school"

	conf *core.Config
)

// Claims represents the authorization claims transmitted via a JWT. The
// subject is the authenticated School's ID.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
}

func GetSchoolClaims(sch school.School, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   sch.ID,
			Audience:  "SchoolAdmin",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         sch.Name,
		Email:        sch.Email,
	}
}

func authenticate(ctx context.Context, email, pwd string, svc *school.Service) (*Claims, error) {
	sch, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding school by email")
	}
	if err = sch.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	return GetSchoolClaims(sch), nil
}

// GenerateToken generates a signed JWT token string representing the school Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey.([]byte))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextSchool(ctx echo.Context, svc *school.Service, clms ...Claims) (school.School, error) {
	if sch, ok := ctx.Get(contextSchoolKey).(school.School); ok {
		return sch, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return school.School{}, errors.Wrap(err, "getting context claims")
		}
	}

	sch, err := svc.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return school.School{}, errors.Wrap(err, "finding school by ID")
	}
	ctx.Set(contextSchoolKey, sch)
	return sch, nil
}

func refreshToken(ctx echo.Context, svc *school.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	sch, err := getContextSchool(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context school")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetSchoolClaims(sch, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
