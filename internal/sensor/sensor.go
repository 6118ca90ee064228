package sensor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Identity is the (pipe, type, number) key of one physical sensor.
type Identity struct {
	PipeID       string
	SensorType   string
	SensorNumber int
}

// Key returns the canonical string form, e.g. "T1_K_2".
func (id Identity) Key() string {
	return fmt.Sprintf("%s_%s_%d", id.PipeID, id.SensorType, id.SensorNumber)
}

// columnRule pairs a header pattern with its identity constructor.
// Rules are tried in order; the first match wins.
type columnRule struct {
	pattern *regexp.Regexp
	build   func(groups []string) Identity
}

var columnRules = []columnRule{
	// Full form: T<pipe>_<type>_<number>, e.g. "T1_K_2".
	{
		pattern: regexp.MustCompile(`^T(\d+)_([A-Za-z]+)_(\d+)$`),
		build: func(g []string) Identity {
			n, _ := strconv.Atoi(g[3])
			return Identity{PipeID: "T" + g[1], SensorType: g[2], SensorNumber: n}
		},
	},
	// Temperature form with no type token: T_<number>, e.g. "T_7".
	// The pipe id keeps the underscore so the key round-trips the header.
	{
		pattern: regexp.MustCompile(`^T_(\d+)$`),
		build: func(g []string) Identity {
			n, _ := strconv.Atoi(g[1])
			return Identity{PipeID: "T_" + g[1], SensorType: "T", SensorNumber: n}
		},
	},
}

// ParseColumn decodes a CSV header into a sensor identity. A trailing
// parenthetical units annotation such as " (mm)" is ignored. Headers that
// match no rule return ok=false; callers skip those columns.
func ParseColumn(header string) (Identity, bool) {
	clean := header
	if i := strings.Index(clean, " ("); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)

	for _, rule := range columnRules {
		if g := rule.pattern.FindStringSubmatch(clean); g != nil {
			return rule.build(g), true
		}
	}
	return Identity{}, false
}

// ParseID decodes a sensor id string like "T1_K_2" back into an Identity.
// It uses the same grammar as ParseColumn so query filters accept exactly
// the keys that ingestion produces.
func ParseID(sensorID string) (Identity, error) {
	id, ok := ParseColumn(sensorID)
	if !ok {
		return Identity{}, fmt.Errorf("invalid sensor id format: %q", sensorID)
	}
	return id, nil
}
