package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bioformats/bigbed/internal/utils"
)

// EncodeRecord is the inverse of FeatureParser.Next: it serializes rec
// into the binary header plus positional optional fields, NUL-terminated,
// stopping at the first absent optional field per the same grammar the
// parser enforces.
func EncodeRecord(rec Record) []byte {
	buf := make([]byte, 0, 64)
	buf = utils.PutUint32(buf, rec.ChromID)
	buf = utils.PutUint32(buf, rec.Start)
	buf = utils.PutUint32(buf, rec.End)

	fields := []string{rec.Name}
	if rec.HasScore {
		fields = append(fields, strconv.FormatUint(uint64(rec.Score), 10))
		if rec.HasStrand {
			fields = append(fields, string(rec.Strand))
			if rec.HasThick {
				fields = append(fields,
					strconv.FormatUint(uint64(rec.ThickStart), 10),
					strconv.FormatUint(uint64(rec.ThickEnd), 10))
				if rec.HasItemRGB {
					fields = append(fields, fmt.Sprintf("%d,%d,%d", rec.ItemRGB[0], rec.ItemRGB[1], rec.ItemRGB[2]))
					if rec.HasBlocks {
						fields = append(fields,
							strconv.Itoa(rec.BlockCount),
							joinInts(rec.BlockSizes),
							joinInts(rec.BlockStarts))
					}
				}
			}
		}
	}

	buf = append(buf, []byte(strings.Join(fields, "\t"))...)
	buf = append(buf, 0)
	return buf
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
