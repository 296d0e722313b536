package logger

import "strings"

const redactedValue = "******"

// 字段名包含以下片段即视为敏感
var sensitiveFieldParts = []string{"secret", "signature", "securehash", "access_key", "accesskey", "password", "token"}

// Redact 复制网关载荷并遮盖敏感字段，仅用于日志
func Redact(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if isSensitiveField(key) {
			out[key] = redactedValue
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			out[key] = Redact(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// RedactValues 遮盖查询参数形式的载荷
func RedactValues(values map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for key, list := range values {
		switch {
		case isSensitiveField(key):
			out[key] = redactedValue
		case len(list) == 1:
			out[key] = list[0]
		default:
			out[key] = list
		}
	}
	return out
}

func isSensitiveField(key string) bool {
	lowered := strings.ToLower(key)
	for _, part := range sensitiveFieldParts {
		if strings.Contains(lowered, part) {
			return true
		}
	}
	return false
}
