package matching

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	leadingFenceRe  = regexp.MustCompile("^```[a-zA-Z]*\n?")
	trailingFenceRe = regexp.MustCompile("\n?```$")
	// 兜底搜索：原文中任意位置的顶层 {...} 或 [...] 块
	salvageJSONRe = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// RecoverJSON 从LLM的自由文本回复中恢复JSON文本。
// 模型可能用代码围栏包裹JSON、在前后附加说明文字，或返回对象包装。
// 恢复顺序：
//  1. 以```开头时剥掉首尾围栏（语言标签可选）；
//  2. 否则取第一个 { 或 [（以先出现者为准）到最后一个 } 或 ] 的闭区间子串；
//  3. 找不到任何括号时原样返回，让后续JSON解码自然失败。
func RecoverJSON(raw string) string {
	txt := strings.TrimSpace(raw)

	if strings.HasPrefix(txt, "```") {
		txt = leadingFenceRe.ReplaceAllString(txt, "")
		txt = trailingFenceRe.ReplaceAllString(txt, "")
		return strings.TrimSpace(txt)
	}

	first := -1
	for _, c := range []string{"[", "{"} {
		if pos := strings.Index(txt, c); pos != -1 && (first == -1 || pos < first) {
			first = pos
		}
	}
	if first == -1 {
		return txt
	}

	last := strings.LastIndex(txt, "}")
	if p := strings.LastIndex(txt, "]"); p > last {
		last = p
	}
	// 闭括号缺失或出现在开括号之前（如"] ok ["）时原样返回，
	// 让后续JSON解码报错而不是切片越界
	if last < first {
		return txt
	}
	return txt[first : last+1]
}

// DecodeJudgments 将LLM回复解码为judgment数组。
// 先对RecoverJSON的结果做严格解析；失败则在未恢复的原文上正则搜索
// 顶层JSON块再试一次；两次都失败时错误向上传播（调用方可选择重发
// 整个LLM请求，解析器自身不重试），错误信息保留原始回复便于排查。
// 解析成功后接受三种形态：裸数组、{"evaluations": [...]}、{"results": [...]}；
// 其余形态返回空列表而非报错——结构不符但解析成功的回复按"无可用结果"处理。
func DecodeJudgments(raw string) ([]Judgment, error) {
	recovered := RecoverJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(recovered), &parsed); err != nil {
		salvaged := salvageJSONRe.FindString(raw)
		if salvaged == "" {
			return nil, fmt.Errorf("LLM回复无法解析为JSON: %w; 原始回复: %s", err, raw)
		}
		if err2 := json.Unmarshal([]byte(salvaged), &parsed); err2 != nil {
			return nil, fmt.Errorf("LLM回复无法解析为JSON(含兜底搜索): %w; 原始回复: %s", err2, raw)
		}
	}

	var list []interface{}
	switch v := parsed.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		if inner, ok := v["evaluations"].([]interface{}); ok {
			list = inner
		} else if inner, ok := v["results"].([]interface{}); ok {
			list = inner
		}
	}
	if list == nil {
		return []Judgment{}, nil
	}

	// 经由JSON往返把通用列表映射为judgment结构
	buf, err := json.Marshal(list)
	if err != nil {
		return []Judgment{}, nil
	}
	var judgments []Judgment
	if err := json.Unmarshal(buf, &judgments); err != nil {
		return []Judgment{}, nil
	}
	return judgments, nil
}
