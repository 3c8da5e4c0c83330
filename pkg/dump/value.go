package dump

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/volatiletech/null"
)

const nullLiteral = "NULL"

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindBit
	kindBinary
	kindGeometry
	kindTemporal
)

var kindsByType = map[string]valueKind{
	"tinyint":   kindNumber,
	"smallint":  kindNumber,
	"mediumint": kindNumber,
	"int":       kindNumber,
	"integer":   kindNumber,
	"bigint":    kindNumber,
	"decimal":   kindNumber,
	"numeric":   kindNumber,
	"float":     kindNumber,
	"double":    kindNumber,
	"real":      kindNumber,
	"year":      kindNumber,

	"bit": kindBit,

	"binary":     kindBinary,
	"varbinary":  kindBinary,
	"tinyblob":   kindBinary,
	"blob":       kindBinary,
	"mediumblob": kindBinary,
	"longblob":   kindBinary,

	"geometry":           kindGeometry,
	"point":              kindGeometry,
	"linestring":         kindGeometry,
	"polygon":            kindGeometry,
	"multipoint":         kindGeometry,
	"multilinestring":    kindGeometry,
	"multipolygon":       kindGeometry,
	"geometrycollection": kindGeometry,
	"geomcollection":     kindGeometry,

	"date":      kindTemporal,
	"datetime":  kindTemporal,
	"timestamp": kindTemporal,
	"time":      kindTemporal,
}

// baseType reduces "int(10) unsigned" to "int".
func baseType(columnType string) string {
	t := strings.ToLower(strings.TrimSpace(columnType))

	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}

	return t
}

// EncodeValue renders a raw column value as a SQL literal for columnType.
func EncodeValue(columnType string, v null.String) string {
	if !v.Valid {
		return nullLiteral
	}

	switch kindsByType[baseType(columnType)] {
	case kindNumber:
		if v.String == "" {
			return nullLiteral
		}

		return v.String
	case kindBit:
		return encodeBit([]byte(v.String))
	case kindBinary:
		return encodeHex([]byte(v.String))
	case kindGeometry:
		// the internal SRID + WKB value is accepted as is by geometry
		// columns, which keeps the stored axis order
		return encodeHex([]byte(v.String))
	case kindTemporal:
		if v.String == "" {
			return nullLiteral
		}

		return Quote(v.String)
	default:
		return Quote(v.String)
	}
}

func encodeBit(b []byte) string {
	if len(b) > 8 {
		return encodeHex(b)
	}

	var n uint64

	for _, c := range b {
		n = n<<8 | uint64(c)
	}

	return "b'" + strconv.FormatUint(n, 2) + "'"
}

func encodeHex(b []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
}
