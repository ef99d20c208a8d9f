package ingest

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

const (
	unitSep   = "\x1f"
	recordSep = "\x1e"
	tableSep  = "\x1d"
)

// Fingerprint hashes the content of the given tables in order.
func Fingerprint(tables ...analytics.RawTable) string {
	h, _ := blake2b.New256(nil)
	for _, t := range tables {
		writeRecord(h, []string{t.Name})
		writeRecord(h, t.Header)
		for _, row := range t.Rows {
			writeRecord(h, row)
		}
		_, _ = h.Write([]byte(tableSep))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeRecord(h hash.Hash, record []string) {
	for _, v := range record {
		_, _ = h.Write([]byte(v))
		_, _ = h.Write([]byte(unitSep))
	}
	_, _ = h.Write([]byte(recordSep))
}

// sourceID is a short stable token naming a pair of sources in cache keys.
func sourceID(sources ...Source) string {
	sum := blake2b.Sum256([]byte(joinSources(sources)))
	return hex.EncodeToString(sum[:8])
}

func joinSources(sources []Source) string {
	out := ""
	for i, s := range sources {
		if i > 0 {
			out += unitSep
		}
		out += s.String()
	}
	return out
}
