// Package pagebuilder carries the page-row document model the platform's
// page builder edits: a tree of heterogeneous row variants under sections,
// mutated through RFC 6902 patches. The admin surface that renders it lives
// elsewhere; this package owns only the document and its edit protocol.
package pagebuilder

import "strconv"

// RowType tags which variant of a row is populated.
type RowType string

const (
	RowTypeResources     RowType = "RESOURCES"
	RowTypeGroupSessions RowType = "GROUP_SESSIONS"
	RowTypeTagGroup      RowType = "TAG_GROUP"
	RowTypeOneColumn     RowType = "ONE_COLUMN_IMAGE"
	RowTypeTwoColumn     RowType = "TWO_COLUMN_IMAGE"
	RowTypeThreeColumn   RowType = "THREE_COLUMN_IMAGE"
)

type Page struct {
	PageID   string    `json:"pageId"`
	Name     string    `json:"name"`
	URLName  string    `json:"urlName"`
	Sections []Section `json:"sections"`
}

type Section struct {
	SectionID       string `json:"sectionId"`
	Headline        string `json:"headline,omitempty"`
	Description     string `json:"description,omitempty"`
	BackgroundColor string `json:"backgroundColorId,omitempty"`
	Rows            []Row  `json:"rows"`
}

// Row is a tagged union: exactly the variant named by Type is populated.
type Row struct {
	RowID        string  `json:"rowId"`
	Type         RowType `json:"rowType"`
	DisplayOrder int     `json:"displayOrder"`

	Resources     *ResourcesRow     `json:"resources,omitempty"`
	GroupSessions *GroupSessionsRow `json:"groupSessions,omitempty"`
	TagGroup      *TagGroupRow      `json:"tagGroup,omitempty"`
	Columns       []ColumnContent   `json:"columns,omitempty"`
}

type ResourcesRow struct {
	ContentIDs []string `json:"contentIds"`
}

type GroupSessionsRow struct {
	GroupSessionIDs []string `json:"groupSessionIds"`
}

type TagGroupRow struct {
	TagGroupID string `json:"tagGroupId"`
}

type ColumnContent struct {
	Headline    string `json:"headline,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageAlt    string `json:"imageAltText,omitempty"`
}

// columnCount returns how many columns a column-variant row must carry.
func columnCount(t RowType) int {
	switch t {
	case RowTypeOneColumn:
		return 1
	case RowTypeTwoColumn:
		return 2
	case RowTypeThreeColumn:
		return 3
	}
	return 0
}

// Validate checks that each row populates exactly its tagged variant.
func (p Page) Validate() []string {
	var problems []string
	for si, sec := range p.Sections {
		for ri, row := range sec.Rows {
			if msg := row.validate(); msg != "" {
				problems = append(problems, rowPath(si, ri)+": "+msg)
			}
		}
	}
	return problems
}

func (r Row) validate() string {
	switch r.Type {
	case RowTypeResources:
		if r.Resources == nil {
			return "resources row has no resources payload"
		}
	case RowTypeGroupSessions:
		if r.GroupSessions == nil {
			return "group sessions row has no group sessions payload"
		}
	case RowTypeTagGroup:
		if r.TagGroup == nil {
			return "tag group row has no tag group payload"
		}
	case RowTypeOneColumn, RowTypeTwoColumn, RowTypeThreeColumn:
		if want := columnCount(r.Type); len(r.Columns) != want {
			return "column row variant and column count disagree"
		}
	default:
		return "unknown row type"
	}
	return ""
}

func rowPath(section, row int) string {
	return "/sections/" + strconv.Itoa(section) + "/rows/" + strconv.Itoa(row)
}
