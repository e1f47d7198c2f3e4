package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleSearch accepts the search envelope and never returns an error
// status for pipeline failures; malformed JSON still gets the valid
// empty envelope with 200.
func (s *APIV1Service) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, emptyEnvelope())
	}
	resp := s.Engine.Search(c.Request().Context(), req.toEngine())
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) handleDiagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"health":      s.Engine.CheckHealth(),
		"diagnostics": s.Engine.Diagnose(),
		"version":     s.Profile.Version,
		"mode":        s.Profile.Mode,
	})
}

func (s *APIV1Service) handleListFlags(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Engine.Flags().Snapshot())
}

// handleToggleFlag flips one flag: PUT /api/v1/flags/:name?enabled=true.
func (s *APIV1Service) handleToggleFlag(c echo.Context) error {
	name := strings.ToUpper(c.Param("name"))
	enabled := strings.EqualFold(c.QueryParam("enabled"), "true")
	if !s.Engine.Flags().Toggle(name, enabled) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown flag", "name": name})
	}
	return c.JSON(http.StatusOK, echo.Map{"name": name, "enabled": enabled})
}
