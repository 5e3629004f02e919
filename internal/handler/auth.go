package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
	"github.com/iliyamo/cinema-booking-engine/internal/utils"
)

// UserDirectory is the account lookup used by session login and by
// checkout, which needs the payer's contact details.
type UserDirectory interface {
	Authenticate(ctx context.Context, email, password string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// AuthHandler issues session tokens.
type AuthHandler struct {
	Users     UserDirectory
	JWTSecret string
	AccessTTL time.Duration
	validate  *validator.Validate
}

func NewAuthHandler(users UserDirectory, secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{Users: users, JWTSecret: secret, AccessTTL: ttl, validate: validator.New()}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone}
}

// Login handles POST /v1/auth/login and returns a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindAndValidate(c, h.validate, &req); !ok {
		return err
	}
	req.Email = utils.NormalizeEmail(req.Email)

	u, err := h.Users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	access, err := utils.NewAccessToken(h.JWTSecret, u.ID, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":   toUserPart(u),
		"access": echo.Map{"token": access.Token, "expires": access.Exp},
	})
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.Users.GetByID(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}
