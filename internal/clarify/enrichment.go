package clarify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

// Enrichment is extra evidence gathered for a single retry.
type Enrichment struct {
	Metadata map[string]any
}

// Enricher gathers evidence for a scope. A nil Enrichment with a nil error
// means nothing was available.
type Enricher interface {
	Enrich(ctx context.Context, scope intent.Scope, needed []string) (*Enrichment, error)
}

// Fingerprint hashes metadata so an unchanged retry can be skipped. Map keys
// are marshalled in sorted order, so equal maps give equal fingerprints.
func Fingerprint(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func enrichedContext(base string, enrichment *Enrichment) string {
	raw, err := json.MarshalIndent(enrichment.Metadata, "", "  ")
	if err != nil {
		raw = []byte("{}")
	}
	var builder strings.Builder
	if trimmed := strings.TrimSpace(base); trimmed != "" {
		builder.WriteString(trimmed)
		builder.WriteString("\n\n")
	}
	builder.WriteString("<enriched_evidence>\n")
	builder.Write(raw)
	builder.WriteString("\n</enriched_evidence>")
	return builder.String()
}
