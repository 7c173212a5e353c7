package helpcenter

import "time"

// Category is one top-level node of the knowledge-base tree.
type Category struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	HTMLURL     string    `json:"html_url"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Locale      string    `json:"locale"`
	Outdated    bool      `json:"outdated"`
}

// Section groups articles under a category.
type Section struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	HTMLURL     string    `json:"html_url"`
	CategoryID  int64     `json:"category_id"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Locale      string    `json:"locale"`
	Outdated    bool      `json:"outdated"`
}

// Article is a single knowledge-base document. Body holds HTML as fetched from
// the API; the harvester rewrites it to Markdown before anything downstream
// sees it.
type Article struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	HTMLURL    string    `json:"html_url"`
	SectionID  int64     `json:"section_id"`
	Position   int       `json:"position"`
	Draft      bool      `json:"draft"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	EditedAt   time.Time `json:"edited_at"`
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Locale     string    `json:"locale"`
	Outdated   bool      `json:"outdated"`
	LabelNames []string  `json:"label_names"`
	Body       string    `json:"body"`

	// Per-run annotations, never part of the API payload.
	StagedPath string `json:"-"`
	ArtifactID string `json:"-"`
}

// pageMeta is the pagination envelope shared by the listing endpoints.
// A nil NextPage means the last page has been reached.
type pageMeta struct {
	Page      int     `json:"page"`
	PageCount int     `json:"page_count"`
	Count     int     `json:"count"`
	NextPage  *string `json:"next_page"`
}

type categoriesPage struct {
	Categories []Category `json:"categories"`
	pageMeta
}

type sectionsPage struct {
	Sections []Section `json:"sections"`
	pageMeta
}

type articlesPage struct {
	Articles []Article `json:"articles"`
	pageMeta
}

type articleEnvelope struct {
	Article Article `json:"article"`
}
