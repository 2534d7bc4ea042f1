package synthesis

import (
	"strings"

	"slack-mock/internal/domain"
)

// Vocabulary: предметные слова, которыми заполняются шаблоны.
type Vocabulary struct {
	Services   []string
	Metrics    []string
	Artifacts  []string
	Milestones []string
	TicketKey  string
}

// DomainFlavor подстраивает тексты под отрасль демо-компании.
type DomainFlavor interface {
	Name() string
	Vocabulary() Vocabulary
	// Matches сообщает, подходит ли вкус к компании.
	Matches(c domain.Company) bool
}

type keywordFlavor struct {
	name     string
	keywords []string
	vocab    Vocabulary
}

func (f keywordFlavor) Name() string           { return f.name }
func (f keywordFlavor) Vocabulary() Vocabulary { return f.vocab }

func (f keywordFlavor) Matches(c domain.Company) bool {
	haystack := strings.ToLower(strings.Join([]string{c.Name, c.Industry, c.Description, strings.Join(c.Topics, " ")}, " "))
	for _, kw := range f.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

var (
	// AutomotiveFlavor: производство автомобилей.
	AutomotiveFlavor DomainFlavor = keywordFlavor{
		name:     "automotive",
		keywords: []string{"automotive", "vehicle", "manufactur", "assembly line", "car maker", "oem"},
		vocab: Vocabulary{
			Services:   []string{"paint shop line 3", "MES gateway", "robot cell R-12", "torque station 7", "body-in-white line", "EOL test bench"},
			Metrics:    []string{"OEE", "first-pass yield", "takt time", "scrap rate", "line downtime"},
			Artifacts:  []string{"PPAP package", "8D report", "control plan", "PFMEA", "shift handover notes"},
			Milestones: []string{"SOP for the new trim", "model-year changeover", "supplier audit", "plant shutdown week"},
			TicketKey:  "PLANT",
		},
	}
	// ITSMFlavor: эксплуатация и управление IT-сервисами.
	ITSMFlavor DomainFlavor = keywordFlavor{
		name:     "itsm",
		keywords: []string{"itsm", "itom", "service management", "incident management", "change management", "it operations"},
		vocab: Vocabulary{
			Services:   []string{"payments-api", "CMDB sync", "event correlation engine", "SSO gateway", "change calendar", "monitoring pipeline"},
			Metrics:    []string{"MTTR", "SLA breach rate", "p95 latency", "alert noise", "change success rate"},
			Artifacts:  []string{"runbook", "post-mortem", "change request", "CAB notes", "problem record"},
			Milestones: []string{"change freeze", "CAB review", "DR failover test", "quarterly access review"},
			TicketKey:  "ITSM",
		},
	}
	// TechFlavor: продуктовая разработка, вкус по умолчанию.
	TechFlavor DomainFlavor = keywordFlavor{
		name: "tech",
		vocab: Vocabulary{
			Services:   []string{"auth-service", "checkout-web", "search-indexer", "notifications-worker", "billing-api", "mobile app"},
			Metrics:    []string{"error rate", "p99 latency", "conversion", "build time", "crash-free sessions"},
			Artifacts:  []string{"design doc", "RFC", "PR", "release notes", "test plan"},
			Milestones: []string{"code freeze", "beta launch", "sprint demo", "GA release"},
			TicketKey:  "ENG",
		},
	}
)

// Flavors: порядок проверки. TechFlavor используется, если ничего не подошло.
var Flavors = []DomainFlavor{AutomotiveFlavor, ITSMFlavor}

// DetectFlavor выбирает вкус по ключевым словам в описании компании.
func DetectFlavor(c domain.Company, flavors []DomainFlavor) DomainFlavor {
	for _, f := range flavors {
		if f.Matches(c) {
			return f
		}
	}
	return TechFlavor
}
