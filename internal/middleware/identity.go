package middleware

import "github.com/labstack/echo/v4"

// ContextUserID is the echo context key JWTAuth stores the session user
// id under.
const ContextUserID = "user_id"

// UserID returns the authenticated user id, or "" when the request did
// not pass through JWTAuth.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok {
		return s
	}
	return ""
}

// rateSubject is the user part of a rate-limit key: the user id or
// "anon" for unauthenticated requests.
func rateSubject(c echo.Context) string {
	if uid := UserID(c); uid != "" {
		return uid
	}
	return "anon"
}
