package handler

import (
	"reflect"
	"strings"
)

// jsonFieldName reports validation errors under the JSON name of a field.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
