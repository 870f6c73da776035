package batcher

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mailvec/mailvec/pkg/types"
)

var (
	// Preferred filename convention: *__domain=<domain>__*.json
	domainTokenRe = regexp.MustCompile(`domain=([A-Za-z0-9.-]+)`)
	// Fallback convention: *@<domain>*.json
	atTokenRe = regexp.MustCompile(`@([A-Za-z0-9.-]+)`)
)

// Plan is the outcome of one batching pass over pending file names
type Plan struct {
	// Batches selected for enqueue, largest-first up to the caller's
	// capacity. FilePaths hold bare file names relative to the scan dir.
	Batches []types.Batch

	// Unroutable lists files whose domain could not be resolved from the
	// filename or the JSON content. They never enter run/; the caller
	// routes them straight to buggy/.
	Unroutable []string
}

// DomainFromFilename extracts the tenant domain from a file name, trying the
// domain= token first and an @domain token second. The .json extension is
// stripped before matching so it can never leak into the domain.
func DomainFromFilename(name string) (string, bool) {
	name = strings.TrimSuffix(name, ".json")
	if m := domainTokenRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	if m := atTokenRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	return "", false
}

// domainFromContent opens the JSON record and reads domain, falling back to
// the host part of user_id
func domainFromContent(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	m, err := types.ParseMail(data)
	if err != nil {
		return "", false
	}
	return m.Domain, true
}

// chunk is one candidate batch before selection
type chunk struct {
	domain string
	index  int
	names  []string
}

// Build resolves each pending file to a domain, groups and chunks them by
// BatchMax, and greedily selects up to capacity chunks by descending size.
// Ties break on ascending domain name, then chunk order, so selection is
// deterministic for a given input.
func Build(dir string, names []string, capacity int) Plan {
	plan := Plan{}
	if capacity <= 0 {
		return plan
	}

	byDomain := make(map[string][]string)
	order := []string{}
	for _, name := range names {
		domain, ok := DomainFromFilename(name)
		if !ok {
			domain, ok = domainFromContent(filepath.Join(dir, name))
		}
		if !ok {
			plan.Unroutable = append(plan.Unroutable, name)
			continue
		}
		if _, seen := byDomain[domain]; !seen {
			order = append(order, domain)
		}
		byDomain[domain] = append(byDomain[domain], name)
	}

	var chunks []chunk
	sort.Strings(order)
	for _, domain := range order {
		files := byDomain[domain]
		for i := 0; len(files) > 0; i++ {
			n := len(files)
			if n > types.BatchMax {
				n = types.BatchMax
			}
			chunks = append(chunks, chunk{domain: domain, index: i, names: files[:n]})
			files = files[n:]
		}
	}

	// Largest first; under-filled chunks are picked only once no fuller
	// chunk remains, which keeps import round-trips amortized.
	sort.SliceStable(chunks, func(a, b int) bool {
		if len(chunks[a].names) != len(chunks[b].names) {
			return len(chunks[a].names) > len(chunks[b].names)
		}
		if chunks[a].domain != chunks[b].domain {
			return chunks[a].domain < chunks[b].domain
		}
		return chunks[a].index < chunks[b].index
	})

	for _, c := range chunks {
		if len(plan.Batches) >= capacity {
			break
		}
		plan.Batches = append(plan.Batches, types.Batch{
			Domain:    c.domain,
			FilePaths: c.names,
		})
	}
	return plan
}
