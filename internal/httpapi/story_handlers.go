package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/gazette/internal/stories"
)

type createStoryBody struct {
	TopicArticleID int64  `json:"topic_article_id"`
	Headline       string `json:"headline"`
	Slides         []struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	} `json:"slides"`
}

func (s *Server) handleCreateStory(c echo.Context) error {
	var body createStoryBody
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON"})
	}
	if body.TopicArticleID <= 0 {
		return failValidation(c, map[string]string{"topic_article_id": "must be a positive integer"})
	}

	req := stories.CreateRequest{
		TopicArticleID: body.TopicArticleID,
		Headline:       body.Headline,
	}
	for _, slide := range body.Slides {
		req.Slides = append(req.Slides, stories.SlideInput{
			Content:  slide.Content,
			ImageURL: slide.ImageURL,
		})
	}

	storyID, err := s.stories.CreateStory(c.Request().Context(), req)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "is required"), strings.Contains(msg, "has no content"):
			return failValidation(c, map[string]string{"body": msg})
		case strings.Contains(msg, "not in processing"):
			return failConflict(c, msg)
		}
		s.logger.Error().Err(err).Int64("topic_article_id", body.TopicArticleID).Msg("create story failed")
		return internalError(c, "Failed to create story")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"story_id": storyID,
	})
}

func (s *Server) handleMarkStoryReady(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	if err := s.stories.MarkStoryReady(c.Request().Context(), id); err != nil {
		if strings.Contains(err.Error(), "not a draft") {
			return failConflict(c, err.Error())
		}
		s.logger.Error().Err(err).Int64("story_id", id).Msg("mark story ready failed")
		return internalError(c, "Failed to mark story ready")
	}
	return success(c, map[string]any{
		"story_id": id,
		"status":   "ready",
	})
}

func (s *Server) handlePublishStory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}

	publishedAt, err := s.stories.PublishStory(c.Request().Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not ready") {
			return failConflict(c, err.Error())
		}
		s.logger.Error().Err(err).Int64("story_id", id).Msg("publish story failed")
		return internalError(c, "Failed to publish story")
	}
	return success(c, map[string]any{
		"story_id":     id,
		"status":       "published",
		"published_at": publishedAt,
	})
}
