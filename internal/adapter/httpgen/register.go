package httpgen

import (
	"strings"

	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/port/mediabackend"
)

func init() {
	mediabackend.Register("httpgen", func(cfg mediabackend.Config) (mediabackend.Backend, error) {
		return NewClient(cfg, parseModalities(cfg.Extra["modalities"])), nil
	})
}

// parseModalities reads a comma-separated modality list from vendor config,
// defaulting to image-only when unset.
func parseModalities(s string) []generate.Modality {
	if s == "" {
		return []generate.Modality{generate.ModalityImage}
	}
	var out []generate.Modality
	for _, part := range strings.Split(s, ",") {
		if m := strings.TrimSpace(part); m != "" {
			out = append(out, generate.Modality(m))
		}
	}
	return out
}
