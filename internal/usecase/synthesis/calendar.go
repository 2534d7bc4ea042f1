package synthesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultWorkdays: будние дни с понедельника по пятницу.
const DefaultWorkdays = "* * * * 1-5"

// Calendar решает, считается ли день рабочим. Выражение, cron, значимы только поля
// дня месяца, месяца и дня недели.
type Calendar struct {
	expr string
}

// NewCalendar проверяет выражение и создаёт календарь.
func NewCalendar(expr string) (*Calendar, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultWorkdays
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("workdays cron %q: want 5 fields", expr)
	}
	fields[0], fields[1] = "*", "*"
	normalized := strings.Join(fields, " ")
	if !gronx.IsValid(normalized) {
		return nil, fmt.Errorf("workdays cron %q: invalid expression", expr)
	}
	return &Calendar{expr: normalized}, nil
}

// IsWorkday сообщает, рабочий ли день, которому принадлежит t.
func (c *Calendar) IsWorkday(t time.Time) bool {
	due, err := gronx.New().IsDue(c.expr, t)
	return err == nil && due
}
