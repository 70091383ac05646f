package domain

import (
	"fmt"
	"hash/crc32"
)

// RecordChecksum is the eight hex digit CRC-32 of a log record's kind and
// body. The log stores each checksum at most once per day.
func RecordChecksum(kind MessageKind, body string) string {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte(body))

	return fmt.Sprintf("%08x", h.Sum32())
}
