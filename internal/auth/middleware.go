package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // user ID
	Role string `json:"role"` // user role: "client" | "staff"
	Name string `json:"name"` // shown on claims and history entries
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens signs and verifies HS256 tokens with one secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a JWT for the given user.
func (t *Tokens) Issue(u User) (string, error) {
	claims := &Claims{
		Sub:  u.ID.String(),
		Role: string(u.Role),
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.secret)
}

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer JWT and injects userID, role and name into the context.
func (t *Tokens) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		tokenStr := strings.TrimPrefix(h, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (any, error) {
			return t.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if _, err := uuid.Parse(claims.Sub); err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("userID", claims.Sub)
		c.Locals("role", claims.Role)
		c.Locals("name", claims.Name)
		return c.Next()
	}
}

// User is the authenticated actor of a request.
type User struct {
	ID   uuid.UUID
	Role models.Role
	Name string
}

// IsStaff reports whether the actor works on the back office side.
func (u User) IsStaff() bool { return u.Role == models.RoleStaff }

// Actor is the label written into status history entries.
func (u User) Actor() string {
	if u.Name != "" {
		return string(u.Role) + ":" + u.Name
	}
	return string(u.Role) + ":" + u.ID.String()
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v := c.Locals("userID"); v != nil {
		return v.(string)
	}
	panic(errors.New("user not in context"))
}

// MustRole reads the authenticated user role from context or panics (programming error).
func MustRole(c *fiber.Ctx) string {
	if v := c.Locals("role"); v != nil {
		return v.(string)
	}
	panic(errors.New("role not in context"))
}

// CurrentUser assembles the authenticated actor. RequireAuth already checked the ID.
func CurrentUser(c *fiber.Ctx) User {
	id := uuid.MustParse(MustUserID(c))
	name, _ := c.Locals("name").(string)
	return User{ID: id, Role: models.Role(MustRole(c)), Name: name}
}

// RequireRole ensures the authenticated user has the expected role.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if MustRole(c) != string(role) {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}
