package salas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amelidiaz19/zoom-api/internal/domain"
)

// RoomField is a column of "Sala" that callers may patch.
type RoomField int

const (
	RoomFieldName RoomField = iota
	RoomFieldZoomLink
	RoomFieldZoomMeetingID
	RoomFieldZoomPassword
	RoomFieldStatus
)

type fieldKind int

const (
	kindString         fieldKind = iota // non-empty text
	kindNullableString                  // text or null
	kindInteger                         // integer
)

type fieldSpec struct {
	column string
	kind   fieldKind
}

var roomFieldSpecs = map[RoomField]fieldSpec{
	RoomFieldName:          {column: "Sala", kind: kindString},
	RoomFieldZoomLink:      {column: "LinkZoom", kind: kindNullableString},
	RoomFieldZoomMeetingID: {column: "IdReunionZoom", kind: kindNullableString},
	RoomFieldZoomPassword:  {column: "ClaveZoom", kind: kindNullableString},
	RoomFieldStatus:        {column: "Estado_id", kind: kindInteger},
}

// roomFieldsByKey maps request keys (the column names) to fields.
var roomFieldsByKey = func() map[string]RoomField {
	m := make(map[string]RoomField, len(roomFieldSpecs))
	for f, spec := range roomFieldSpecs {
		m[spec.column] = f
	}
	return m
}()

// Column returns the "Sala" column f writes.
func (f RoomField) Column() string {
	return roomFieldSpecs[f].column
}

// RoomFieldKeys lists the accepted patch keys in sorted order.
func RoomFieldKeys() []string {
	keys := make([]string, 0, len(roomFieldsByKey))
	for k := range roomFieldsByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RoomUpdate is one typed assignment.
type RoomUpdate struct {
	Field RoomField
	Value interface{} // string, *string or int64 depending on the field
}

// RoomPatch is a validated set of room updates, ordered by column.
type RoomPatch []RoomUpdate

// ParseRoomPatch validates a JSON object of column to value. Unknown keys or
// values of the wrong type fail the whole patch.
func ParseRoomPatch(body map[string]json.RawMessage) (RoomPatch, error) {
	if len(body) == 0 {
		return nil, domain.NewValidationError("no hay campos para actualizar")
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patch := make(RoomPatch, 0, len(keys))
	for _, k := range keys {
		field, ok := roomFieldsByKey[k]
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("campo %q no permitido (permitidos: %s)", k, strings.Join(RoomFieldKeys(), ", ")))
		}
		v, err := decodeValue(roomFieldSpecs[field].kind, body[k])
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("valor inválido para %q", k), err)
		}
		patch = append(patch, RoomUpdate{Field: field, Value: v})
	}
	return patch, nil
}

// SQL builds the UPDATE statement for room id.
func (p RoomPatch) SQL(roomID int64) (string, []interface{}) {
	sets := make([]string, 0, len(p))
	args := make([]interface{}, 0, len(p)+1)
	for i, u := range p {
		sets = append(sets, fmt.Sprintf(`"%s" = $%d`, u.Field.Column(), i+1))
		args = append(args, u.Value)
	}
	args = append(args, roomID)
	return fmt.Sprintf(`UPDATE "Sala" SET %s WHERE "IdSala" = $%d`, strings.Join(sets, ", "), len(p)+1), args
}

func decodeValue(kind fieldKind, raw json.RawMessage) (interface{}, error) {
	isNull := bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	switch kind {
	case kindString:
		var s string
		if isNull {
			return nil, fmt.Errorf("must not be null")
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		return s, nil
	case kindNullableString:
		if isNull {
			return (*string)(nil), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case kindInteger:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported field kind %d", kind)
}
