package embeds

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"

	"slack-mock/internal/domain"
)

type kind struct {
	typ     domain.EmbedType
	pattern *regexp.Regexp
	app     domain.AppInfo
	title   func(link string, seed int64) string
}

var (
	notionPath     = regexp.MustCompile(`(?i)notion\.(?:so|site)/(?:[^/]+/)?([^/?#]+)`)
	figmaPath      = regexp.MustCompile(`(?i)figma\.com/file/[^/]+/([^/?#]+)`)
	jiraIssue      = regexp.MustCompile(`(?i)browse/([A-Z]+-\d+)|selectedIssue=([A-Z]+-\d+)`)
	jiraAnyIssue   = regexp.MustCompile(`(?i)([A-Z]+-\d+)`)
	confluencePath = regexp.MustCompile(`(?i)pages/viewpage\.action\?pageId=\d+|spaces/[^/]+/pages/([^/?#]+)`)
)

var (
	notionTitles = []string{
		"Product Requirements Document: Q4 Feature Roadmap",
		"Engineering Design Doc: API Architecture Overview",
		"Product Strategy: Customer Feedback Analysis",
		"Technical Specification: Database Migration Plan",
		"Product Brief: New User Onboarding Flow",
		"Engineering Runbook: Incident Response Procedures",
		"Product Planning: Feature Prioritization Framework",
		"Technical Documentation: Service Architecture Guide",
		"Product Research: User Behavior Analytics Report",
		"Engineering Guide: Deployment Best Practices",
	}
	figmaTitles = []string{
		"Design System: Component Library and Style Guide",
		"Mobile App UI: User Interface Mockups and Prototypes",
		"Web Dashboard: Admin Panel Design Components",
		"Design System: Color Palette and Typography Scale",
		"Mobile Screens: User Onboarding Flow Designs",
		"Web Components: Button and Form Element Library",
		"Design System: Icon Set and Illustration Guidelines",
		"Mobile UI: Navigation and Layout Patterns",
		"Web Interface: Dashboard and Analytics Views",
		"Design Components: Card and Modal Patterns",
	}
	jiraSummaries = []string{
		"Fix authentication token expiration issue",
		"Implement rate limiting for API endpoints",
		"Add error handling for database connection failures",
		"Optimize query performance for user dashboard",
		"Resolve memory leak in background job processor",
		"Update third-party library dependencies",
		"Improve logging and monitoring for production",
		"Refactor legacy code for better maintainability",
		"Add comprehensive test coverage for critical paths",
		"Enhance security measures for user data access",
	}
	confluenceTitles = []string{
		"Engineering Runbook: Production Incident Response Guide",
		"Technical Documentation: API Integration Best Practices",
		"Engineering Playbook: Database Migration Procedures",
		"Technical Guide: Microservices Architecture Overview",
		"Engineering Documentation: CI/CD Pipeline Configuration",
		"Technical Runbook: Monitoring and Alerting Setup",
		"Engineering Guide: Code Review and Deployment Process",
		"Technical Documentation: Security Best Practices",
		"Engineering Playbook: Performance Optimization Strategies",
		"Technical Guide: Troubleshooting Common Production Issues",
	}
	loomTitles = []string{
		"Product Demo: New Feature Walkthrough",
		"Engineering Tutorial: API Integration Guide",
		"Design Review: UI Component Showcase",
		"Team Update: Sprint Planning Discussion",
		"Technical Explanation: Architecture Deep Dive",
		"User Feedback: Feature Testing Session",
		"Design Presentation: Design System Overview",
		"Engineering Walkthrough: Deployment Process",
		"Product Overview: Feature Announcement",
		"Technical Demo: Performance Optimization",
	}
	workdayTitles = []string{
		"Employee Profile: Production Team Member",
		"Performance Review: Manufacturing Operations",
		"Time Tracking: Plant Operations Schedule",
		"Payroll Report: Global Manufacturing Team",
		"Employee Directory: Engineering Department",
		"Benefits Enrollment: Q4 Open Enrollment",
		"Training Record: Quality Control Certification",
		"Workforce Analytics: Production Efficiency Report",
		"Recruitment: Plant Operations Positions",
		"Employee Development: Career Growth Plan",
	}
)

// fallbackTitle используется для jira-ссылки без номера задачи.
const fallbackTitle = "ENG-123: Fix critical bug in authentication flow"

// kinds перечислены в порядке обхода; совпадающие URL достаются первому типу.
var kinds = []kind{
	{
		typ:     domain.EmbedNotion,
		pattern: regexp.MustCompile(`(?i)https?://(?:www\.)?(?:notion\.so|notion\.site)/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Notion", Icon: "📝", Color: "#ffffff", LogoURL: "/assets/notion.png"},
		title: func(link string, seed int64) string {
			return pathTitle(notionPath, link, notionTitles, seed)
		},
	},
	{
		typ:     domain.EmbedFigma,
		pattern: regexp.MustCompile(`(?i)https?://(?:www\.)?figma\.com/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Figma", Icon: "🎨", Color: "#0acf83", LogoURL: "/assets/figma.png", ThumbnailURL: "/assets/figma-thumbnail.jpg"},
		title: func(link string, seed int64) string {
			return pathTitle(figmaPath, link, figmaTitles, seed)
		},
	},
	{
		typ:     domain.EmbedJira,
		pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']*jira[^\s<>"']*/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Jira", Icon: "🎫", Color: "#0052cc", LogoURL: "/assets/jira.png"},
		title:   jiraTitle,
	},
	{
		typ:     domain.EmbedConfluence,
		pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']*confluence[^\s<>"']*/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Confluence", Icon: "📚", Color: "#172b4d", LogoURL: "/assets/confluence.png"},
		title: func(link string, seed int64) string {
			return pathTitle(confluencePath, link, confluenceTitles, seed)
		},
	},
	{
		typ:     domain.EmbedLoom,
		pattern: regexp.MustCompile(`(?i)https?://(?:www\.)?loom\.com/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Loom", Icon: "🎥", Color: "#625DF5", LogoURL: "/assets/loom.svg", ThumbnailURL: "/assets/loom-thumbnail.jpg"},
		title: func(_ string, seed int64) string {
			return pickTitle(loomTitles, seed)
		},
	},
	{
		typ:     domain.EmbedWorkday,
		pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']*workday[^\s<>"']*/[^\s<>"']+`),
		app:     domain.AppInfo{Name: "Workday", Icon: "💼", Color: "#FF6B35", LogoURL: "/assets/workday.png"},
		title: func(_ string, seed int64) string {
			return pickTitle(workdayTitles, seed)
		},
	},
}

// Detector распознаёт ссылки на внешние инструменты и строит для них карточки.
// Чистая функция от текста и отправителя: ничего не хранит и не ходит в сеть.
type Detector struct {
	dir domain.Directory
}

// NewDetector создаёт детектор поверх справочника людей.
func NewDetector(dir domain.Directory) *Detector {
	return &Detector{dir: dir}
}

// Detect возвращает карточки для всех ссылок в тексте. Одинаковые URL учитываются один раз.
func (d *Detector) Detect(text, sender string) []domain.EmbedConfig {
	viewer := d.dir.Viewer().Name
	fromAssistant := sender != "" && sender == d.dir.Assistant().Name

	var out []domain.EmbedConfig
	seen := make(map[string]bool)
	for _, k := range kinds {
		for _, link := range k.pattern.FindAllString(text, -1) {
			if seen[link] {
				continue
			}
			seen[link] = true

			seed := URLSeed(link)
			owner := d.ownerFor(seed, viewer)
			// документы в confluence ассистент создаёт от имени зрителя
			if fromAssistant && k.typ == domain.EmbedConfluence {
				owner = viewer
			}
			out = append(out, domain.EmbedConfig{
				Type:  k.typ,
				URL:   link,
				Title: k.title(link, seed),
				Owner: owner,
			})
		}
	}
	return out
}

func (d *Detector) ownerFor(seed int64, viewer string) string {
	people := d.dir.People()
	if len(people) == 0 {
		return viewer
	}
	if name := people[seed%int64(len(people))].Name; name != "" {
		return name
	}
	return viewer
}

// AppInfo возвращает оформление карточки. Для неизвестного типа: нейтральная «Link».
func AppInfo(t domain.EmbedType) domain.AppInfo {
	for _, k := range kinds {
		if k.typ == t {
			return k.app
		}
	}
	return domain.AppInfo{Name: "Link", Icon: "🔗", Color: "#cccccc"}
}

// URLSeed: 32-битный хэш строки по UTF-16 кодам (h = 31*h + c) по модулю.
// Совпадает с тем, как фронтенд выбирает заголовки, поэтому карточки одинаковы на обеих сторонах.
func URLSeed(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

func pickTitle(titles []string, seed int64) string {
	return titles[seed%int64(len(titles))]
}

// pathTitle берёт заголовок из пути ссылки, если он достаточно информативен.
func pathTitle(re *regexp.Regexp, link string, titles []string, seed int64) string {
	if m := re.FindStringSubmatch(link); len(m) > 1 && m[1] != "" {
		if t := humanizeSlug(m[1]); len([]rune(t)) >= 5 {
			return t
		}
	}
	return pickTitle(titles, seed)
}

func humanizeSlug(raw string) string {
	raw = strings.ReplaceAll(raw, "-", " ")
	raw = strings.ReplaceAll(raw, "%20", " ")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	r := []rune(raw)
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func jiraTitle(link string, seed int64) string {
	id := ""
	if m := jiraIssue.FindStringSubmatch(link); m != nil {
		id = m[1]
		if id == "" {
			id = m[2]
		}
	} else if m := jiraAnyIssue.FindStringSubmatch(link); m != nil {
		id = m[1]
	}
	if id == "" {
		return fallbackTitle
	}
	return id + ": " + pickTitle(jiraSummaries, seed)
}
