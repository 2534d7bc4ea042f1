package configstore

import (
	"errors"
	"fmt"
	"strings"

	"slack-mock/internal/domain"
)

// Validate проверяет людей и топологию каналов. Возвращает все найденные нарушения разом.
// Групповой диалог без единого известного участника считается ошибкой.
func Validate(people []domain.Person, channels domain.ChannelConfig) error {
	return validate(people, channels, true)
}

// validate с members=false не проверяет состав групповых диалогов: при загрузке
// такие группы отбрасываются в normalize.
func validate(people []domain.Person, channels domain.ChannelConfig, members bool) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	names := make(map[string]struct{}, len(people))
	me := 0
	for i, p := range people {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			fail("people[%d]: empty name", i)
			continue
		}
		if _, dup := names[name]; dup {
			fail("people[%d]: duplicate name %q", i, name)
		}
		names[name] = struct{}{}
		if p.Me {
			me++
		}
	}
	if me > 1 {
		fail("people: %d persons marked as me", me)
	}

	ids := make(map[string]string)
	checkID := func(path, id string) {
		if strings.TrimSpace(id) == "" {
			fail("%s: empty id", path)
			return
		}
		if prev, dup := ids[id]; dup {
			fail("%s: id %q already used by %s", path, id, prev)
			return
		}
		ids[id] = path
	}
	sections := []struct {
		name string
		list []domain.Channel
	}{
		{"starred", channels.Starred},
		{"public", channels.Public},
		{"private", channels.Private},
	}
	for _, s := range sections {
		for i, ch := range s.list {
			checkID(fmt.Sprintf("%s[%d]", s.name, i), ch.ID)
		}
	}

	for i, g := range channels.GroupDMs {
		path := fmt.Sprintf("groupDMs[%d]", i)
		checkID(path, g.ID)
		if !members {
			continue
		}
		if len(g.Members) == 0 {
			fail("%s: no members", path)
			continue
		}
		known := 0
		for _, m := range g.Members {
			if _, ok := names[m]; ok {
				known++
			}
		}
		if known == 0 {
			fail("%s: none of the members %v is a known person", path, g.Members)
		}
	}

	return errors.Join(errs...)
}
