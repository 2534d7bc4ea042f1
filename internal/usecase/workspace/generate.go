package workspace

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"slack-mock/internal/adapters/configstore"
	"slack-mock/internal/domain"
)

// CompanyContext: входной файл генератора.
type CompanyContext struct {
	Company struct {
		Name        string `json:"name"`
		Logo        string `json:"logo,omitempty"`
		Description string `json:"description,omitempty"`
		Industry    string `json:"industry,omitempty"`
		CompanySize string `json:"companySize,omitempty"`
	} `json:"company"`
	Employees []domain.Person `json:"employees"`
	Channels  struct {
		Starred []domain.Channel `json:"starred"`
		Public  []domain.Channel `json:"public"`
		Private []domain.Channel `json:"private"`
	} `json:"channels"`
	GroupDMs           []domain.GroupDM          `json:"groupDMs"`
	CommunicationStyle domain.CommunicationStyle `json:"communicationStyle"`
}

var (
	legacyFace = regexp.MustCompile(`(?i)^face-\d+\.(jpg|jpeg|png)$`)
	maleFace   = regexp.MustCompile(`(?i)^face-[136]\.(jpg|jpeg|png)$`)
	femaleFace = regexp.MustCompile(`(?i)^face-[2457]\.(jpg|jpeg|png)$`)

	placeholderAvatars = []string{"your-photo", "member1", "member2", "member3", "rovo-icon"}
)

// Generate читает company-context.* и записывает company.json, people.json и channel-config.json.
func (s *Service) Generate() error {
	path, ok := findFile(s.dir, ContextFile)
	if !ok {
		return fmt.Errorf("generate: %w in %s", ErrNoContext, s.dir)
	}
	var cc CompanyContext
	if err := readConfig(path, &cc); err != nil {
		return err
	}
	if strings.TrimSpace(cc.Company.Name) == "" {
		return fmt.Errorf("generate: %w: company.name is empty", configstore.ErrInvalidConfig)
	}

	company := s.buildCompany(cc)
	people := s.buildPeople(cc.Employees)
	channels := domain.ChannelConfig{
		Starred:       nonNil(cc.Channels.Starred),
		Public:        nonNil(cc.Channels.Public),
		Private:       nonNil(cc.Channels.Private),
		GroupDMs:      cc.GroupDMs,
		MessageThemes: buildThemes(cc, people),
	}
	if channels.GroupDMs == nil {
		channels.GroupDMs = []domain.GroupDM{}
	}
	if err := configstore.Validate(people, channels); err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{configstore.CompanyFile, company},
		{configstore.PeopleFile, people},
		{configstore.ChannelsFile, channels},
	}
	for _, f := range files {
		for _, ext := range configExtensions[1:] {
			if err := removeIfExists(filepath.Join(s.dir, f.name+ext)); err != nil {
				return fmt.Errorf("generate: %w", err)
			}
		}
		if err := writeConfig(filepath.Join(s.dir, f.name+".json"), f.v); err != nil {
			return err
		}
		s.printf("✅ Generated %s.json\n", f.name)
	}
	s.log.Info().Str("company", company.Name).Int("people", len(people)).Msg("workspace: generated from context")
	return nil
}

func nonNil(list []domain.Channel) []domain.Channel {
	if list == nil {
		return []domain.Channel{}
	}
	return list
}

func (s *Service) buildCompany(cc CompanyContext) domain.Company {
	c := domain.Company{
		Name:               cc.Company.Name,
		LogoInitials:       CompanyInitials(cc.Company.Name),
		Description:        cc.Company.Description,
		Industry:           cc.Company.Industry,
		CompanySize:        cc.Company.CompanySize,
		CommunicationStyle: cc.CommunicationStyle,
	}
	if logo := cc.Company.Logo; logo != "" && !strings.Contains(logo, "your-logo") && !strings.Contains(strings.ToLower(logo), "atlassian") {
		c.Logo = logo
	}
	seen := map[string]bool{}
	for _, ch := range cc.Channels.Public {
		for _, t := range ch.Topics {
			if !seen[t] {
				seen[t] = true
				c.Topics = append(c.Topics, t)
			}
		}
	}
	return c
}

// CompanyInitials возвращает две буквы для логотипа, то есть первые буквы слов или начало единственного слова.
func CompanyInitials(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "CO"
	case 1:
		r := []rune(words[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	}
	var b []rune
	for _, w := range words {
		b = append(b, []rune(w)[0])
		if len(b) == 2 {
			break
		}
	}
	return strings.ToUpper(string(b))
}

// buildPeople назначает аватары: файл по слагу имени, затем указанный в контексте,
// затем свободный пронумерованный face-N по полу. Иначе аватар пуст и интерфейс рисует инициалы.
func (s *Service) buildPeople(employees []domain.Person) []domain.Person {
	var male, female []string
	if entries, err := readFaces(s.faces); err == nil {
		for _, f := range entries {
			switch {
			case maleFace.MatchString(f):
				male = append(male, f)
			case femaleFace.MatchString(f):
				female = append(female, f)
			}
		}
	}
	used := map[string]bool{}
	take := func(pool []string) string {
		for _, f := range pool {
			if !used[f] {
				used[f] = true
				return FacesURLPrefix + f
			}
		}
		return ""
	}

	out := make([]domain.Person, 0, len(employees))
	for _, emp := range employees {
		p := emp
		p.Initials = configstore.Initials(p.Name)
		if p.IsAssistant() {
			p.Avatar = ""
			out = append(out, p)
			continue
		}
		switch file, named := s.faceFor(p.Name); {
		case named:
			p.Avatar = FacesURLPrefix + file
			used[file] = true
		case usableAvatar(p.Avatar, s.faces):
			used[strings.TrimPrefix(p.Avatar, FacesURLPrefix)] = true
		case strings.EqualFold(p.Gender, "female"):
			p.Avatar = take(female)
		case strings.EqualFold(p.Gender, "male"):
			p.Avatar = take(male)
		default:
			p.Avatar = take(append(append([]string(nil), male...), female...))
		}
		if p.Avatar == "" {
			s.printf("  ⚠ Using initials fallback for %s (no avatar images available)\n", p.Name)
		}
		out = append(out, p)
	}
	return out
}

func usableAvatar(avatar, faces string) bool {
	if avatar == "" {
		return false
	}
	for _, marker := range placeholderAvatars {
		if strings.Contains(avatar, marker) {
			return false
		}
	}
	if !strings.HasPrefix(avatar, FacesURLPrefix) {
		return false
	}
	return exists(filepath.Join(faces, strings.TrimPrefix(avatar, FacesURLPrefix)))
}

func readFaces(dir string) ([]string, error) {
	entries, err := readDirNames(dir)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if legacyFace.MatchString(e) {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out, nil
}

// buildThemes готовит заготовленные реплики каналов по их назначению и профилю компании.
func buildThemes(cc CompanyContext, people []domain.Person) map[string][]domain.ThemeLine {
	h := fnv.New64a()
	_, _ = h.Write([]byte(cc.Company.Name))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x5eed))
	num := func(lo, span int) int { return lo + rng.IntN(span) }

	all := append(append(append([]domain.Channel(nil), cc.Channels.Starred...), cc.Channels.Public...), cc.Channels.Private...)
	themes := make(map[string][]domain.ThemeLine, len(all))
	for _, ch := range all {
		id := ch.ID
		name := strings.TrimPrefix(ch.Name, "#")
		if name == "" {
			name = id
		}
		switch {
		case id == "general":
			themes[id] = announcements(cc, people, rng)
		case strings.Contains(id, "content") || strings.Contains(id, "social"):
			themes[id] = plain(
				fmt.Sprintf("Content moderation update: %d items reviewed today", num(10, 50)),
				"New feature release: Enhanced content discovery algorithm deployed",
				fmt.Sprintf("User engagement metrics: %d%% increase this week", num(5, 30)),
				"Platform performance: All systems operational, response times within targets",
			)
		case strings.Contains(id, "operations"):
			themes[id] = plain(
				"Daily operations update: All systems running smoothly",
				"Inventory status: Stock levels healthy, no issues reported",
				fmt.Sprintf("Customer service: Response times improved, %d tickets resolved today", num(5, 20)),
				fmt.Sprintf("Fulfillment update: Shipping on schedule, %d orders processed", num(50, 100)),
			)
		case strings.Contains(id, "engineering") || strings.Contains(id, "dev"):
			themes[id] = plain(
				fmt.Sprintf("Code review needed for PR #%d", num(1000, 5000)),
				fmt.Sprintf("Deployment completed successfully: v%d.%d.%d", num(1, 5), rng.IntN(10), rng.IntN(10)),
				fmt.Sprintf("Architecture discussion: %s improvements", name),
				fmt.Sprintf("Performance optimization: Reduced latency by %d%%", num(10, 30)),
			)
		default:
			topics := ch.Topics
			if len(topics) == 0 {
				topics = []string{"updates", "discussions", "coordination"}
			}
			at := func(i int) string {
				if i < len(topics) {
					return topics[i]
				}
				return topics[0]
			}
			themes[id] = plain(
				"Update on "+at(0),
				"Discussion about "+at(1),
				"Status update: "+at(2)+" progress",
				"New information regarding "+at(0),
			)
		}
	}
	return themes
}

func plain(lines ...string) []domain.ThemeLine {
	out := make([]domain.ThemeLine, len(lines))
	for i, l := range lines {
		out[i] = domain.ThemeLine{Text: l}
	}
	return out
}

func announcements(cc CompanyContext, people []domain.Person, rng *rand.Rand) []domain.ThemeLine {
	byRole := func(fallback int, markers ...string) string {
		for _, p := range people {
			for _, m := range markers {
				if strings.Contains(p.Role, m) {
					return p.Name
				}
			}
		}
		if fallback < len(people) {
			return people[fallback].Name
		}
		return "Team Lead"
	}
	desc := strings.ToLower(cc.Company.Description)
	industry := strings.ToLower(cc.Company.Industry)

	out := []domain.ThemeLine{{
		Who: byRole(0, "Manager", "Lead"),
		Text: "<strong>🎉 Welcome to " + cc.Company.Name + "!</strong><br><br>" +
			"This is our main channel for company-wide updates, announcements and important information.<br><br>" +
			"<strong>Quick Links:</strong><br>• Check out team channels for department-specific discussions<br>" +
			"• Review pinned messages for important resources<br>• Don't hesitate to ask questions!",
	}}
	switch {
	case strings.Contains(desc, "social") || strings.Contains(desc, "content") || strings.Contains(desc, "media"):
		out = append(out, domain.ThemeLine{
			Who:  byRole(1, "Product", "Marketing"),
			Text: "<strong>📱 Platform Updates & Feature Releases</strong><br><br>• Enhanced content discovery algorithm<br>• Improved video playback performance<br>• New creator tools and analytics dashboard",
		})
	case strings.Contains(desc, "ecommerce") || strings.Contains(desc, "retail") || strings.Contains(desc, "shop"):
		out = append(out, domain.ThemeLine{
			Who:  byRole(1, "Operations", "Manager"),
			Text: "<strong>🛒 Operations & Inventory Updates</strong><br><br>• Inventory levels healthy across all warehouses<br>• Shipping times within target SLAs<br>• New fulfillment centers coming online next quarter",
		})
	case strings.Contains(industry, "health") || strings.Contains(industry, "medical"):
		out = append(out, domain.ThemeLine{
			Who:  byRole(1, "Clinical", "Operations"),
			Text: "<strong>🏥 Important Updates & Reminders</strong><br><br>• Updated compliance protocols effective immediately<br>• New patient care guidelines available in resources<br>• Staff training sessions scheduled",
		})
	default:
		out = append(out, domain.ThemeLine{
			Who:  byRole(1, "Engineering", "Product"),
			Text: "<strong>🚀 Q2 Strategic Initiatives</strong><br><br>• Platform scalability and performance improvements<br>• Infrastructure upgrades for better reliability<br>• Team growth and expansion<br><br>All-hands next Friday, bring your questions! 💪",
		})
	}
	size := strings.ToLower(cc.Company.CompanySize)
	if strings.Contains(size, "growing") || strings.Contains(size, "expanding") {
		out = append(out, domain.ThemeLine{
			Who: byRole(0, "People", "HR"),
			Text: fmt.Sprintf("<strong>👥 Welcome Our New Team Members!</strong><br><br>• Engineering: %d new team members<br>• Product & Design: %d new team members<br>• Operations: %d new team members",
				2+rng.IntN(5), 1+rng.IntN(3), 1+rng.IntN(3)),
		})
	}
	return out
}
