package identity

import (
	"regexp"
	"strings"
	"unicode"
)

// GuessedField 启发式提取的字段值。
// Confident为false表示这是低置信度猜测，调用方展示或入库时
// 必须带上这个标记，不允许当作确定值静默使用。
type GuessedField struct {
	Value     string
	Confident bool
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// 简历开头常见的姓名行：2-4个首字母大写的词，不含数字
	nameLineRe = regexp.MustCompile(`^[A-Z][a-zA-Z'-]+(?: [A-Z][a-zA-Z'-]+){1,3}$`)
)

// GuessEmail 从自由文本里猜邮箱。
// 唯一命中视为高置信，多个命中取第一个并降级为低置信。
func GuessEmail(text string) GuessedField {
	matches := emailRe.FindAllString(text, 2)
	switch len(matches) {
	case 0:
		return GuessedField{}
	case 1:
		return GuessedField{Value: matches[0], Confident: true}
	default:
		return GuessedField{Value: matches[0], Confident: false}
	}
}

// GuessName 从自由文本的前几行里猜候选人姓名。
// 永远是低置信度结果：姓名行和职位行在格式上无法可靠区分。
func GuessName(text string) GuessedField {
	lines := strings.Split(text, "\n")
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsFunc(line, unicode.IsDigit) {
			continue
		}
		if nameLineRe.MatchString(line) {
			return GuessedField{Value: line, Confident: false}
		}
	}
	return GuessedField{}
}
