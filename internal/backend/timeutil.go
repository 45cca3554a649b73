package backend

import (
	"fmt"
	"time"
)

// the backend emits RFC 3339 and WooCommerce's zone-less local form
var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseBackendTime(s string) (time.Time, error) {
	for _, layout := range backendTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q", s)
}
