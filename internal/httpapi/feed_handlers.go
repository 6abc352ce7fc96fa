package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/gazette/internal/db"
)

const maxFeedOffset = 100_000

func (s *Server) handleTopicFeed(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return failValidation(c, map[string]string{"slug": "is required"})
	}

	limit, err := parseUintParam(c.QueryParam("limit"), 0, 200)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parseUintParam(c.QueryParam("offset"), 0, maxFeedOffset)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}

	filter := db.FeedFilter{
		Keywords:      splitListParam(c.QueryParam("keywords")),
		SourceDomains: splitListParam(c.QueryParam("source_domains")),
		SourceNames:   splitListParam(c.QueryParam("source_names")),
		Limit:         limit,
		Offset:        offset,
	}

	feed, err := s.pool.GetTopicStories(c.Request().Context(), slug, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("topic_slug", slug).Msg("query topic feed failed")
		return internalError(c, "Failed to load topic feed")
	}
	if feed == nil {
		feed = []db.FeedStory{}
	}

	return success(c, map[string]any{
		"topic_slug": slug,
		"items":      feed,
	})
}
