package avatars

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

const (
	defaultDiceBearURL  = "https://api.dicebear.com/7.x/avataaars/svg"
	defaultUIAvatarsURL = "https://ui-avatars.com/api/"
	diceBearBackgrounds = "b6e3f4,c0aede,d1d4f9,ffd5dc,ffdfbf"
	maxImageBytes       = 2 << 20
)

// ErrBadStatus возвращается, когда сервис аватаров ответил не 200.
var ErrBadStatus = errors.New("avatar service returned non-200")

var palettes = map[string][]string{
	"male":    {"3B82F6", "10B981", "F59E0B", "EF4444", "8B5CF6", "EC4899", "06B6D4"},
	"female":  {"EC4899", "F472B6", "A855F7", "8B5CF6", "6366F1", "3B82F6", "06B6D4"},
	"neutral": {"6B7280", "9CA3AF", "D1D5DB", "4B5563", "374151"},
}

var _ domain.AvatarFetcher = (*Client)(nil)

// Client скачивает аватары: сначала DiceBear (SVG), при неудаче UI Avatars (PNG).
type Client struct {
	http         *http.Client
	diceBearURL  string
	uiAvatarsURL string
	limiter      *rate.Limiter
	retries      uint64
}

// Option настраивает клиента.
type Option func(*Client)

// WithBaseURLs подменяет адреса сервисов (для тестов и зеркал).
func WithBaseURLs(diceBear, uiAvatars string) Option {
	return func(c *Client) {
		c.diceBearURL = diceBear
		c.uiAvatarsURL = uiAvatars
	}
}

// WithRetries задаёт число повторов на сетевые ошибки и 5xx.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// NewClient создаёт клиента. Между запросами выдерживается пауза limiter.
func NewClient(timeout time.Duration, limiter *rate.Limiter, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		diceBearURL:  defaultDiceBearURL,
		uiAvatarsURL: defaultUIAvatarsURL,
		limiter:      limiter,
		retries:      2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch скачивает аватар для персоны.
func (c *Client) Fetch(ctx context.Context, p domain.Person) (domain.AvatarImage, error) {
	data, err := c.get(ctx, "dicebear", DiceBearURL(c.diceBearURL, p.Name))
	if err == nil {
		return domain.AvatarImage{Data: data, Ext: ".svg", Source: "dicebear"}, nil
	}
	if ctx.Err() != nil {
		return domain.AvatarImage{}, ctx.Err()
	}
	data, fallbackErr := c.get(ctx, "ui_avatars", UIAvatarsURL(c.uiAvatarsURL, p.Name, p.Gender))
	if fallbackErr != nil {
		return domain.AvatarImage{}, fmt.Errorf("avatar %s: %w", p.Name, errors.Join(err, fallbackErr))
	}
	return domain.AvatarImage{Data: data, Ext: ".png", Source: "ui_avatars"}, nil
}

func (c *Client) get(ctx context.Context, component, link string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var body []byte
	op := func() (err error) {
		start := time.Now()
		defer func() {
			metrics.ObserveNetworkRequest(component, "download_avatar", hostOf(link), start, err)
		}()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("%w: %s %d", ErrBadStatus, component, resp.StatusCode)
			if resp.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}

// DiceBearURL строит ссылку на SVG-аватар, сид, слаг имени.
func DiceBearURL(base, name string) string {
	q := url.Values{}
	q.Set("seed", domain.Slug(name))
	q.Set("backgroundColor", diceBearBackgrounds)
	return base + "?" + q.Encode()
}

// UIAvatarsURL строит ссылку на PNG с инициалами на цветном фоне.
func UIAvatarsURL(base, name, gender string) string {
	q := url.Values{}
	q.Set("name", avatarInitials(name))
	q.Set("background", Color(name, gender))
	q.Set("color", "FFFFFF")
	q.Set("size", "256")
	q.Set("bold", "true")
	q.Set("format", "png")
	return base + "?" + q.Encode()
}

// Color выбирает цвет фона из палитры пола по хэшу имени.
func Color(name, gender string) string {
	palette, ok := palettes[strings.ToLower(gender)]
	if !ok {
		palette = palettes["neutral"]
	}
	h := nameHash(name)
	if h < 0 {
		h = -h
	}
	return palette[h%int64(len(palette))]
}

// nameHash: h = c + (h<<5) - h, где сдвиг выполняется в 32 битах.
func nameHash(name string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(name)) {
		h = int64(c) + int64(int32(h)<<5) - h
	}
	return h
}

func avatarInitials(name string) string {
	parts := strings.Fields(name)
	if len(parts) >= 2 {
		first := []rune(parts[0])
		last := []rune(parts[len(parts)-1])
		return strings.ToUpper(string(first[0]) + string(last[0]))
	}
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
