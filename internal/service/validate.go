package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// isEmail 邮箱格式校验
func isEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// 活动时间支持的格式，不带时区的按 UTC 解释
var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseEventDate 解析活动时间
func parseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseCapacity 解析容量
// 返回 (nil, true) 表示未提供；ok=false 表示非正整数
func parseCapacity(v interface{}) (*int, bool) {
	var n float64
	switch x := v.(type) {
	case nil:
		return nil, true
	case float64:
		n = x
	case int:
		n = float64(x)
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, true
		}
		parsed, err := strconv.Atoi(x)
		if err != nil {
			return nil, false
		}
		n = float64(parsed)
	default:
		return nil, false
	}

	if n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
		return nil, false
	}
	c := int(n)
	return &c, true
}

// normalizeTags 去除首尾空白，丢弃空标签与重复标签，保持首次出现的顺序
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// optionalText 可选文本：缺省或空白时返回 nil
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
