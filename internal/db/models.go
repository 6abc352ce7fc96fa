package db

import (
	"encoding/json"
	"time"
)

// Topic processing statuses for a topic article.
const (
	StatusNew              = "new"
	StatusProcessing       = "processing"
	StatusProcessed        = "processed"
	StatusDiscarded        = "discarded"
	StatusDuplicatePending = "duplicate_pending"
	StatusMerged           = "merged"
)

// Story publication statuses.
const (
	StoryStatusDraft     = "draft"
	StoryStatusReady     = "ready"
	StoryStatusPublished = "published"
)

// Topic maps pipeline.topics. One topic is one tenant scope.
type Topic struct {
	TopicID   int64     `gorm:"column:topic_id;primaryKey;autoIncrement"`
	TopicUUID string    `gorm:"column:topic_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	TopicSlug string    `gorm:"column:topic_slug;type:text;not null;unique"`
	TopicName string    `gorm:"column:topic_name;type:text;not null"`
	TopicType string    `gorm:"column:topic_type;type:text;not null;default:regional"`
	Region    *string   `gorm:"column:region;type:text"`
	CreatedBy *string   `gorm:"column:created_by;type:text"`
	IsPublic  bool      `gorm:"column:is_public;type:boolean;not null;default:true"`
	IsActive  bool      `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Topic) TableName() string { return "pipeline.topics" }

// ContentSource maps pipeline.content_sources.
type ContentSource struct {
	SourceID         int64      `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID       string     `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceName       string     `gorm:"column:source_name;type:text;not null"`
	FeedURL          *string    `gorm:"column:feed_url;type:text;unique"`
	CanonicalDomain  string     `gorm:"column:canonical_domain;type:text;not null"`
	SourceType       string     `gorm:"column:source_type;type:text;not null;default:national"`
	CredibilityScore int        `gorm:"column:credibility_score;type:integer;not null;default:50"`
	IsActive         bool       `gorm:"column:is_active;type:boolean;not null;default:true"`
	ArticlesScraped  int64      `gorm:"column:articles_scraped;type:bigint;not null;default:0"`
	FailureCount     int        `gorm:"column:failure_count;type:integer;not null;default:0"`
	LastScrapedAt    *time.Time `gorm:"column:last_scraped_at;type:timestamptz"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ContentSource) TableName() string { return "pipeline.content_sources" }

// TopicSource maps pipeline.topic_sources, the topic/source junction.
type TopicSource struct {
	TopicID   int64     `gorm:"column:topic_id;type:bigint;primaryKey"`
	SourceID  int64     `gorm:"column:source_id;type:bigint;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (TopicSource) TableName() string { return "pipeline.topic_sources" }

// SharedArticleContent maps pipeline.shared_article_content, the canonical
// tenant-independent record of one piece of ingested content.
type SharedArticleContent struct {
	ContentID       int64      `gorm:"column:content_id;primaryKey;autoIncrement"`
	ContentUUID     string     `gorm:"column:content_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	URL             string     `gorm:"column:url;type:text;not null;unique"`
	NormalizedURL   string     `gorm:"column:normalized_url;type:text;not null"`
	Title           string     `gorm:"column:title;type:text;not null"`
	Body            string     `gorm:"column:body;type:text;not null;default:''"`
	Author          *string    `gorm:"column:author;type:text"`
	PublishedAt     *time.Time `gorm:"column:published_at;type:timestamptz"`
	ImageURL        *string    `gorm:"column:image_url;type:text"`
	Language        *string    `gorm:"column:language;type:text"`
	SourceID        *int64     `gorm:"column:source_id;type:bigint"`
	ContentChecksum []byte     `gorm:"column:content_checksum;type:bytea;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (SharedArticleContent) TableName() string { return "pipeline.shared_article_content" }

// TopicArticle maps pipeline.topic_articles: one topic's view of a shared
// content row, carrying the topic-scoped status and scores.
type TopicArticle struct {
	TopicArticleID         int64           `gorm:"column:topic_article_id;primaryKey;autoIncrement"`
	TopicArticleUUID       string          `gorm:"column:topic_article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SharedContentID        int64           `gorm:"column:shared_content_id;type:bigint;not null"`
	TopicID                int64           `gorm:"column:topic_id;type:bigint;not null"`
	ProcessingStatus       string          `gorm:"column:processing_status;type:text;not null;default:new"`
	RegionalRelevanceScore *int            `gorm:"column:regional_relevance_score;type:integer"`
	ContentQualityScore    *int            `gorm:"column:content_quality_score;type:integer"`
	KeywordMatches         json.RawMessage `gorm:"column:keyword_matches;type:jsonb"`
	ImportMetadata         json.RawMessage `gorm:"column:import_metadata;type:jsonb"`
	CreatedAt              time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (TopicArticle) TableName() string { return "pipeline.topic_articles" }

// ArticleDuplicate maps pipeline.article_duplicates, the pending review
// queue populated by the duplicate detector for near matches.
type ArticleDuplicate struct {
	DuplicateID             int64      `gorm:"column:duplicate_id;primaryKey;autoIncrement"`
	OriginalTopicArticleID  int64      `gorm:"column:original_topic_article_id;type:bigint;not null"`
	DuplicateTopicArticleID int64      `gorm:"column:duplicate_topic_article_id;type:bigint;not null"`
	SimilarityScore         float64    `gorm:"column:similarity_score;type:double precision;not null"`
	DetectionMethod         string     `gorm:"column:detection_method;type:text;not null"`
	Status                  string     `gorm:"column:status;type:text;not null;default:pending"`
	ResolvedAt              *time.Time `gorm:"column:resolved_at;type:timestamptz"`
	CreatedAt               time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleDuplicate) TableName() string { return "pipeline.article_duplicates" }

// Story maps pipeline.stories.
type Story struct {
	StoryID        int64      `gorm:"column:story_id;primaryKey;autoIncrement"`
	StoryUUID      string     `gorm:"column:story_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	TopicArticleID int64      `gorm:"column:topic_article_id;type:bigint;not null;unique"`
	TopicID        int64      `gorm:"column:topic_id;type:bigint;not null"`
	Headline       string     `gorm:"column:headline;type:text;not null"`
	Status         string     `gorm:"column:status;type:text;not null;default:draft"`
	IsPublished    bool       `gorm:"column:is_published;type:boolean;not null;default:false"`
	PublishedAt    *time.Time `gorm:"column:published_at;type:timestamptz"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Story) TableName() string { return "pipeline.stories" }

// Slide maps pipeline.slides, the ordered carousel segments of a story.
type Slide struct {
	SlideID     int64     `gorm:"column:slide_id;primaryKey;autoIncrement"`
	StoryID     int64     `gorm:"column:story_id;type:bigint;not null"`
	SlideNumber int       `gorm:"column:slide_number;type:integer;not null"`
	Content     string    `gorm:"column:content;type:text;not null"`
	ImageURL    *string   `gorm:"column:image_url;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Slide) TableName() string { return "pipeline.slides" }

// PipelineSettings maps pipeline.settings, one versioned row of tuning
// configuration. The highest version is current.
type PipelineSettings struct {
	SettingsID int64           `gorm:"column:settings_id;primaryKey;autoIncrement"`
	Version    int64           `gorm:"column:version;type:bigint;not null;unique"`
	Policy     json.RawMessage `gorm:"column:policy;type:jsonb;not null"`
	Comment    *string         `gorm:"column:comment;type:text"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (PipelineSettings) TableName() string { return "pipeline.settings" }

// AuditLog maps pipeline.audit_log, the append-only decision trail.
type AuditLog struct {
	AuditID         int64           `gorm:"column:audit_id;primaryKey;autoIncrement"`
	EventType       string          `gorm:"column:event_type;type:text;not null"`
	TopicID         *int64          `gorm:"column:topic_id;type:bigint"`
	TopicArticleID  *int64          `gorm:"column:topic_article_id;type:bigint"`
	SharedContentID *int64          `gorm:"column:shared_content_id;type:bigint"`
	SettingsVersion *int64          `gorm:"column:settings_version;type:bigint"`
	Detail          json.RawMessage `gorm:"column:detail;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (AuditLog) TableName() string { return "pipeline.audit_log" }

func autoMigrateModels() []any {
	return []any{
		&Topic{},
		&ContentSource{},
		&TopicSource{},
		&SharedArticleContent{},
		&TopicArticle{},
		&ArticleDuplicate{},
		&Story{},
		&Slide{},
		&PipelineSettings{},
		&AuditLog{},
	}
}
