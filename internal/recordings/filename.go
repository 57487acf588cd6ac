package recordings

import (
	"regexp"
	"strconv"
)

// fileNamePattern encodes CODE_MODULO_<module>_G<group>[_<order>].mp4.
var fileNamePattern = regexp.MustCompile(`^([A-Z]+)_MODULO_(\d+)_G(\d+)(?:_(\d+))?\.mp4$`)

// ParsedName is the course linkage encoded in a recording filename.
// When Matched is false no other field is meaningful.
type ParsedName struct {
	Matched bool
	Code    string // course business code, e.g. POPP
	Module  string // module numeration within the course
	Group   string // group number, part of the room name
	Order   int    // position within the room, 1 when absent
}

// RoomFragment is the substring searched for in room names ("<code> <group>").
func (p ParsedName) RoomFragment() string {
	return p.Code + " " + p.Group
}

// ParseFileName extracts course code, module, group and order from name.
func ParseFileName(name string) ParsedName {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}
	}
	order := 1
	if m[4] != "" {
		if n, err := strconv.Atoi(m[4]); err == nil {
			order = n
		}
	}
	return ParsedName{Matched: true, Code: m[1], Module: m[2], Group: m[3], Order: order}
}
