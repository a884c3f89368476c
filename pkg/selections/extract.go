package selections

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/jmespath/go-jmespath"
)

// Extractor pulls selections out of a line-item payload using each input's sourcePath. Compiled
// paths are cached, so one Extractor can be shared.
type Extractor struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewExtractor() *Extractor {
	return &Extractor{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Extract returns a selection map for every ENABLED input with a sourcePath whose value is present
// in payload. Keys already present in explicit win over extracted values.
func (x *Extractor) Extract(ix *models.TreeIndex, payload any, explicit map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(explicit))
	for k, v := range explicit {
		out[k] = v
	}
	if payload == nil {
		return out, nil
	}

	data, err := normalize(payload)
	if err != nil {
		return nil, err
	}

	inputs := ix.Inputs()
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		input := inputs[key].Input
		if input.SourcePath == "" {
			continue
		}
		if _, ok := out[key]; ok {
			continue
		}

		compiled, err := x.getOrCompile(input.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("invalid sourcePath %q for selection '%s': %w", input.SourcePath, key, err)
		}
		result, err := compiled.Search(data)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate sourcePath %q for selection '%s': %w", input.SourcePath, key, err)
		}
		if result == nil {
			continue
		}
		out[key] = result
	}

	return out, nil
}

func (x *Extractor) getOrCompile(path string) (*jmespath.JMESPath, error) {
	x.mu.RLock()
	if compiled, ok := x.cache[path]; ok {
		x.mu.RUnlock()
		return compiled, nil
	}
	x.mu.RUnlock()

	compiled, err := jmespath.Compile(path)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.cache[path] = compiled
	x.mu.Unlock()

	return compiled, nil
}

// ValidatePath reports whether path is a valid JMESPath expression.
func (x *Extractor) ValidatePath(path string) error {
	_, err := x.getOrCompile(path)
	return err
}

// normalize round-trips typed payloads through JSON so JMESPath sees plain maps and slices.
func normalize(payload any) (any, error) {
	switch payload.(type) {
	case map[string]any, []any:
		return payload, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload cannot be encoded: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("payload cannot be decoded: %w", err)
	}
	return out, nil
}
