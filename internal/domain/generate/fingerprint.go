package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives a deterministic short key from an operation identifier
// and its parameter set. Parameters are serialized with sorted keys (at every
// nesting level) so that semantically identical requests collide and
// vary-by-parameter requests never do.
func Fingerprint(operation string, params map[string]any) string {
	var b strings.Builder
	b.WriteString(operation)
	b.WriteByte('\n')
	writeCanonical(&b, params)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// FingerprintRequest fingerprints a full generation request: the vendor and
// operation form the identifier, the prompt and parameters the payload.
func (r *Request) Fingerprint() string {
	params := make(map[string]any, len(r.Parameters)+2)
	for k, v := range r.Parameters {
		params[k] = v
	}
	params["_prompt"] = r.Prompt
	params["_modality"] = string(r.Modality)
	return Fingerprint(r.Vendor+"/"+r.Operation, params)
}

// writeCanonical emits a stable serialization of v: maps with sorted keys,
// everything else via encoding/json.
func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		data, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(b, "%v", val)
			return
		}
		b.Write(data)
	}
}
