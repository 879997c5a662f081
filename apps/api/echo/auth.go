package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	contextTokenKey    = "userToken"
	contextUserKey     = "user"
	contextIdentityKey = "identity"

	tokenAudience = "LaSAlumni Portal"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	TokenType    string `json:"typ"`
	Name         string `json:"name,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

type tokenIssuer struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		accessTTL:  conf.Server.JWTExpirationDelta,
		refreshTTL: conf.Server.JWTRefreshExpirationDelta,
		secure:     conf.Server.SecureCookies,
	}
}

// claims builds the claims of a token of the given type. origIat carries the
// session start over refreshes.
func (ti *tokenIssuer) claims(usr user.User, tokenType string, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	ttl := ti.accessTTL
	if tokenType == tokenTypeRefresh {
		ttl = ti.refreshTTL
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TokenType:    tokenType,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// sign generates a signed JWT token string representing the user Claims.
func (ti *tokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *tokenIssuer) parse(tokenString string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// issueCookies sets fresh access and refresh cookies for usr.
func (ti *tokenIssuer) issueCookies(ctx echo.Context, usr user.User, origIat ...int64) error {
	access, err := ti.sign(ti.claims(usr, tokenTypeAccess, origIat...))
	if err != nil {
		return err
	}
	refresh, err := ti.sign(ti.claims(usr, tokenTypeRefresh, origIat...))
	if err != nil {
		return err
	}
	ctx.SetCookie(ti.cookie(session.AccessCookie, access, ti.accessTTL))
	ctx.SetCookie(ti.cookie(session.RefreshCookie, refresh, ti.refreshTTL))
	return nil
}

func (ti *tokenIssuer) clearCookies(ctx echo.Context) {
	ctx.SetCookie(ti.cookie(session.AccessCookie, "", -1))
	ctx.SetCookie(ti.cookie(session.RefreshCookie, "", -1))
}

func (ti *tokenIssuer) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   ti.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

func (s *server) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    s.tokens.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   "cookie:" + session.AccessCookie,
	}
}

// accessTokenMiddleware rejects refresh tokens presented as access tokens.
func accessTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil || claims.TokenType != tokenTypeAccess {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (s *server) authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	reqCtx := ctx.Request().Context()
	usr, err := s.UserSvc.GetByUsernameOrEmail(reqCtx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = s.UserSvc.SetLastLogin(reqCtx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// refreshSession validates the refresh cookie and issues new cookies within the
// refresh window opened at login.
func (s *server) refreshSession(ctx echo.Context) (user.User, error) {
	c, err := ctx.Cookie(session.RefreshCookie)
	if err != nil || c.Value == "" {
		return user.User{}, middleware.ErrJWTMissing
	}
	claims, err := s.tokens.parse(c.Value)
	if err != nil || claims.TokenType != tokenTypeRefresh {
		return user.User{}, errUnauthorized
	}

	usr, err := getContextUser(ctx, s.UserSvc, *claims)
	if err != nil {
		return user.User{}, err
	}
	// check if user is still active
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.tokens.refreshTTL)
	if nowFunc().After(expTime) {
		return user.User{}, errRefreshExpired
	}

	if err := s.tokens.issueCookies(ctx, usr, claims.OrigIssuedAt); err != nil {
		return user.User{}, errors.Wrap(err, "issuing cookies")
	}
	return usr, nil
}
