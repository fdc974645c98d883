// Package common holds the small shapes shared by several domain DTOs.
package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref is a reference to another backend entity as embedded in a DTO.
type Ref struct {
	ID   int64  `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// Display renders the reference for a table cell. Nil renders "-".
func (r *Ref) Display() string {
	if r == nil {
		return "-"
	}
	switch {
	case r.Code != "" && r.Name != "":
		return fmt.Sprintf("%s - %s", r.Code, r.Name)
	case r.Name != "":
		return r.Name
	case r.Code != "":
		return r.Code
	case r.ID != 0:
		return "#" + strconv.FormatInt(r.ID, 10)
	default:
		return "-"
	}
}

// ParseID coerces form input to an entity id. Empty input yields 0.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// OrDash returns s, or "-" when s is empty.
func OrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// YesNo renders a flag in the portal's language.
func YesNo(b bool) string {
	if b {
		return "Có"
	}
	return "Không"
}
