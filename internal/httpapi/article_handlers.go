package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/gazette/internal/admission"
	"horse.fit/gazette/internal/dedup"
	payloadschema "horse.fit/gazette/schema"
)

const maxArticleBodyBytes = 1 << 20

func (s *Server) handleSubmitArticle(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxArticleBodyBytes+1))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}
	if len(raw) > maxArticleBodyBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
	}

	payload, err := payloadschema.ValidateArticlePayload(json.RawMessage(raw))
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	req, err := admission.RequestFromPayload(payload)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	result, err := s.admission.Submit(c.Request().Context(), req)
	if err != nil {
		if isClientSubmitError(err) {
			return failValidation(c, map[string]string{"payload": err.Error()})
		}
		s.logger.Error().Err(err).Str("url", payload.URL).Msg("article submission failed")
		return internalError(c, "Failed to submit article")
	}

	status := http.StatusCreated
	if result.Outcome != admission.OutcomeAccepted {
		status = http.StatusOK
	}
	return successWithStatus(c, status, result)
}

// isClientSubmitError distinguishes caller mistakes from pipeline faults so
// they map to 400 instead of 500.
func isClientSubmitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "is required") ||
		strings.Contains(msg, "not found or inactive")
}

func (s *Server) handleListDuplicates(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	entries, err := s.detector.ListReviewEntries(c.Request().Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("topic_article_id", id).Msg("list duplicate entries failed")
		return internalError(c, "Failed to load duplicate entries")
	}
	if entries == nil {
		entries = []dedup.ReviewEntry{}
	}
	return success(c, map[string]any{
		"topic_article_id": id,
		"items":            entries,
	})
}

func (s *Server) handleResolveDuplicate(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON"})
	}

	var confirm bool
	switch strings.ToLower(strings.TrimSpace(body.Resolution)) {
	case "confirm", "confirmed":
		confirm = true
	case "dismiss", "dismissed":
		confirm = false
	default:
		return failValidation(c, map[string]string{"resolution": "must be confirm or dismiss"})
	}

	if err := s.detector.ResolveReviewEntry(c.Request().Context(), id, confirm); err != nil {
		if strings.Contains(err.Error(), "not pending") {
			return failConflict(c, err.Error())
		}
		s.logger.Error().Err(err).Int64("duplicate_id", id).Msg("resolve duplicate failed")
		return internalError(c, "Failed to resolve duplicate")
	}
	return success(c, map[string]any{
		"duplicate_id": id,
		"confirmed":    confirm,
	})
}

func (s *Server) handleResetTopicArticle(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON"})
	}
	if strings.TrimSpace(body.Reason) == "" {
		return failValidation(c, map[string]string{"reason": "is required"})
	}

	if err := s.admission.ResetTopicArticle(c.Request().Context(), id, body.Reason); err != nil {
		if strings.Contains(err.Error(), "not in a resettable status") {
			return failConflict(c, err.Error())
		}
		s.logger.Error().Err(err).Int64("topic_article_id", id).Msg("reset topic article failed")
		return internalError(c, "Failed to reset topic article")
	}
	return success(c, map[string]any{
		"topic_article_id": id,
		"status":           "new",
	})
}
