package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ExtractJSONObject 尝试从模型输出中截取“第一个完整 JSON 对象/数组”。
// 模型可能在 JSON 前后夹杂说明文字或 markdown 代码围栏。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// ExtractJSONArray 截取模型输出中的数组。
// 输出本身是数组时直接返回；是对象时返回 key 字段（key 为空则取第一个数组字段）。
func ExtractJSONArray(s, key string) (json.RawMessage, error) {
	raw := ExtractJSONObject(s)
	if raw == "" {
		return nil, fmt.Errorf("empty model output")
	}
	if strings.HasPrefix(raw, "[") {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("model output is not valid json")
		}
		return json.RawMessage(raw), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("model output is not valid json: %w", err)
	}
	if key != "" {
		if v, ok := obj[key]; ok && isJSONArray(v) {
			return v, nil
		}
	}
	for _, v := range obj {
		if isJSONArray(v) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("model output has no %q array", key)
}

func isJSONArray(v json.RawMessage) bool {
	t := strings.TrimSpace(string(v))
	return strings.HasPrefix(t, "[")
}
