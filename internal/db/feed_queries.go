package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// FeedFilter narrows the published feed of a topic. All fields are
// optional; zero values mean no constraint.
type FeedFilter struct {
	Keywords      []string
	SourceDomains []string
	SourceNames   []string
	Limit         uint64
	Offset        uint64
}

const defaultFeedLimit = 50
const maxFeedLimit = 200

// FeedSlide is one carousel segment of a feed story.
type FeedSlide struct {
	SlideNumber int     `json:"slide_number"`
	Content     string  `json:"content"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// FeedStory is one published story as the read path returns it.
type FeedStory struct {
	StoryID            int64       `json:"story_id"`
	TopicArticleID     int64       `json:"topic_article_id"`
	Headline           string      `json:"headline"`
	Status             string      `json:"status"`
	PublishedAt        *time.Time  `json:"published_at,omitempty"`
	ArticleTitle       string      `json:"article_title"`
	ArticleURL         string      `json:"article_url"`
	ArticlePublishedAt *time.Time  `json:"article_published_at,omitempty"`
	SourceName         *string     `json:"source_name,omitempty"`
	SourceDomain       *string     `json:"source_domain,omitempty"`
	Slides             []FeedSlide `json:"slides"`
}

// GetTopicStories returns the published feed for one topic, newest first
// by article publication time with story creation time as the fallback,
// slides ordered by slide number.
func (p *Pool) GetTopicStories(ctx context.Context, topicSlug string, filter FeedFilter) ([]FeedStory, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	query, args, err := buildTopicStoriesQuery(topicSlug, filter)
	if err != nil {
		return nil, err
	}

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topic feed: %w", err)
	}
	defer rows.Close()

	var (
		result []FeedStory
		seen   = make(map[int64]struct{})
	)
	for rows.Next() {
		var story FeedStory
		err := rows.Scan(
			&story.StoryID,
			&story.TopicArticleID,
			&story.Headline,
			&story.Status,
			&story.PublishedAt,
			&story.ArticleTitle,
			&story.ArticleURL,
			&story.ArticlePublishedAt,
			&story.SourceName,
			&story.SourceDomain,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feed story: %w", err)
		}
		if _, dup := seen[story.StoryID]; dup {
			continue
		}
		seen[story.StoryID] = struct{}{}
		result = append(result, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed stories: %w", err)
	}

	if err := p.attachSlides(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// buildTopicStoriesQuery assembles the feed SELECT. Keyword terms match
// the article text (title, body, slide content) with the precomputed
// keyword_matches array as a fourth branch; source terms are substring
// matches so "example" finds news.example.com.
func buildTopicStoriesQuery(topicSlug string, filter FeedFilter) (string, []any, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(
			"st.story_id",
			"st.topic_article_id",
			"st.headline",
			"st.status",
			"st.published_at",
			"c.title",
			"c.url",
			"c.published_at",
			"s.source_name",
			"s.canonical_domain",
		).
		From("pipeline.stories st").
		Join("pipeline.topic_articles ta ON ta.topic_article_id = st.topic_article_id").
		Join("pipeline.shared_article_content c ON c.content_id = ta.shared_content_id").
		Join("pipeline.topics t ON t.topic_id = st.topic_id").
		LeftJoin("pipeline.content_sources s ON s.source_id = c.source_id").
		Where(sq.Eq{"t.topic_slug": topicSlug}).
		Where(sq.Eq{"st.status": []string{StoryStatusReady, StoryStatusPublished}}).
		Where(sq.Eq{"st.is_published": true}).
		OrderBy("c.published_at DESC NULLS LAST", "st.created_at DESC", "st.story_id DESC").
		Limit(limit).
		Offset(filter.Offset)

	if len(filter.SourceDomains) > 0 {
		or := make(sq.Or, 0, len(filter.SourceDomains)*2)
		for _, term := range filter.SourceDomains {
			pattern := likePattern(term)
			or = append(or,
				sq.Expr("s.canonical_domain ILIKE ?", pattern),
				sq.Expr("c.url ILIKE ?", pattern),
			)
		}
		builder = builder.Where(or)
	}
	if len(filter.SourceNames) > 0 {
		or := make(sq.Or, 0, len(filter.SourceNames))
		for _, term := range filter.SourceNames {
			or = append(or, sq.Expr("s.source_name ILIKE ?", likePattern(term)))
		}
		builder = builder.Where(or)
	}
	if len(filter.Keywords) > 0 {
		or := make(sq.Or, 0, len(filter.Keywords)*4)
		for _, keyword := range filter.Keywords {
			needle, err := json.Marshal([]string{keyword})
			if err != nil {
				return "", nil, fmt.Errorf("encode keyword filter: %w", err)
			}
			pattern := likePattern(keyword)
			or = append(or,
				sq.Expr("c.title ILIKE ?", pattern),
				sq.Expr("c.body ILIKE ?", pattern),
				sq.Expr("EXISTS (SELECT 1 FROM pipeline.slides ks WHERE ks.story_id = st.story_id AND ks.content ILIKE ?)", pattern),
				sq.Expr("ta.keyword_matches @> ?::jsonb", string(needle)),
			)
		}
		builder = builder.Where(or)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build feed query: %w", err)
	}
	return query, args, nil
}

// likePattern wraps a filter term for substring ILIKE matching, escaping
// the LIKE metacharacters so the term stays literal.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

func (p *Pool) attachSlides(ctx context.Context, feed []FeedStory) error {
	if len(feed) == 0 {
		return nil
	}

	index := make(map[int64]int, len(feed))
	ids := make([]int64, 0, len(feed))
	for i := range feed {
		feed[i].Slides = []FeedSlide{}
		index[feed[i].StoryID] = i
		ids = append(ids, feed[i].StoryID)
	}

	query, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("sl.story_id", "sl.slide_number", "sl.content", "sl.image_url").
		From("pipeline.slides sl").
		Where(sq.Eq{"sl.story_id": ids}).
		OrderBy("sl.story_id", "sl.slide_number").
		ToSql()
	if err != nil {
		return fmt.Errorf("build slides query: %w", err)
	}

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query feed slides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			storyID int64
			slide   FeedSlide
		)
		if err := rows.Scan(&storyID, &slide.SlideNumber, &slide.Content, &slide.ImageURL); err != nil {
			return fmt.Errorf("scan feed slide: %w", err)
		}
		if i, ok := index[storyID]; ok {
			feed[i].Slides = append(feed[i].Slides, slide)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate feed slides: %w", err)
	}
	return nil
}
