package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const OrgIDKey contextKey = "organization_id"

var orgIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// OrgScope resolves the caller's organization and stores it on the request
// context. Repositories AND-combine it with every query predicate; an empty
// organization means the request is unscoped.
func OrgScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID := extractOrgID(c)
			if orgID != "" && !orgIDPattern.MatchString(orgID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid organization identifier")
			}

			ctx := context.WithValue(c.Request().Context(), OrgIDKey, orgID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("organization_id", orgID)
			return next(c)
		}
	}
}

func extractOrgID(c echo.Context) string {
	if oid := c.Request().Header.Get("X-Organization-ID"); oid != "" {
		return oid
	}
	return c.QueryParam("organization_id")
}

// OrgFromContext retrieves the organization ID from context.
func OrgFromContext(ctx context.Context) string {
	oid, _ := ctx.Value(OrgIDKey).(string)
	return oid
}
