package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/gazette/internal/cleanup"
	"horse.fit/gazette/internal/settings"
)

func (s *Server) handleGetSettings(c echo.Context) error {
	cfg, err := settings.Load(c.Request().Context(), s.pool)
	if err != nil {
		s.logger.Error().Err(err).Msg("load settings failed")
		return internalError(c, "Failed to load settings")
	}
	return success(c, cfg)
}

type putSettingsBody struct {
	Version int64           `json:"version"`
	Policy  settings.Policy `json:"policy"`
	Comment string          `json:"comment"`
}

// handlePutSettings appends a new settings version. Versions are immutable;
// the caller must propose one higher than the current.
func (s *Server) handlePutSettings(c echo.Context) error {
	var body putSettingsBody
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON"})
	}

	current, err := settings.Load(c.Request().Context(), s.pool)
	if err != nil {
		s.logger.Error().Err(err).Msg("load settings failed")
		return internalError(c, "Failed to load settings")
	}
	if body.Version <= current.Version {
		return failValidation(c, map[string]string{
			"version": "must be greater than the current version",
		})
	}

	if err := settings.Save(c.Request().Context(), s.pool, body.Version, body.Policy, body.Comment); err != nil {
		if strings.Contains(err.Error(), "invalid settings policy") {
			return failValidation(c, map[string]string{"policy": err.Error()})
		}
		s.logger.Error().Err(err).Int64("version", body.Version).Msg("save settings failed")
		return internalError(c, "Failed to save settings")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"version": body.Version,
	})
}

func (s *Server) handleRunCleanup(c echo.Context) error {
	job := strings.TrimSpace(c.Param("job"))

	var (
		affected int64
		err      error
	)
	if job == "all" {
		affected, err = s.cleanup.RunAll(c.Request().Context())
	} else {
		affected, err = s.cleanup.Run(c.Request().Context(), job)
	}
	if err != nil {
		if strings.Contains(err.Error(), "unknown cleanup job") {
			return failNotFound(c, "Unknown cleanup job: "+job)
		}
		s.logger.Error().Err(err).Str("job", job).Msg("cleanup job failed")
		return internalError(c, "Cleanup job failed")
	}

	return success(c, map[string]any{
		"job":           job,
		"rows_affected": affected,
		"jobs":          cleanup.JobNames,
	})
}
