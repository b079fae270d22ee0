package wire

import (
	"io"

	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/verror"
)

// Format selects one of the three output encodings spec.md §6 names.
type Format string

const (
	FormatNative    Format = "native"
	FormatCallgrind Format = "callgrind"
	FormatPstat     Format = "pstat"
)

// ValidFormats enumerates the formats ParseFormat accepts.
var ValidFormats = map[Format]bool{FormatNative: true, FormatCallgrind: true, FormatPstat: true}

// ParseFormat validates a CLI/API-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !ValidFormats[f] {
		return "", verror.NewInvalidArgument(verror.IDBadOutputFormat, [3]string{s, "", ""})
	}
	return f, nil
}

// Write dispatches to the encoder matching f. creator is only used by
// the callgrind format's header line.
func Write(w io.Writer, f Format, store *stats.Store, creator string) error {
	switch f {
	case FormatNative:
		return WriteNative(w, store)
	case FormatCallgrind:
		return WriteCallgrind(w, store, creator)
	case FormatPstat:
		return WritePstat(w, store)
	default:
		return verror.NewNotSupported(verror.IDUnknownFormat, [3]string{string(f), "", ""})
	}
}
