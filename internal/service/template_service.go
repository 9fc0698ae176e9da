// internal/service/template_service.go
package service

import (
	"strings"
	"time"
)

// RenderTemplate replaces every {key} in template with data[key]. Unknown
// placeholders are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

func messageData(name, barcode string, validUntil *time.Time) map[string]string {
	data := map[string]string{
		"name":        name,
		"barcode":     barcode,
		"valid_until": "",
	}
	if validUntil != nil {
		data["valid_until"] = validUntil.Format("2006-01-02")
	}
	return data
}
