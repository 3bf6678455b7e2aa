// internal/models/knowledge_base.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// KnowledgeBase maps topic keys to canned answers. It is immutable after
// construction and safe to share between requests.
type KnowledgeBase struct {
	entries     map[string]string
	topics      []string
	fingerprint string
}

// NewKnowledgeBase copies entries, trimming keys and dropping blank keys or answers.
func NewKnowledgeBase(entries map[string]string) *KnowledgeBase {
	kb := &KnowledgeBase{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		kb.entries[k] = v
	}
	kb.topics = make([]string, 0, len(kb.entries))
	for k := range kb.entries {
		kb.topics = append(kb.topics, k)
	}
	sort.Strings(kb.topics)

	h := sha256.New()
	for _, k := range kb.topics {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(kb.entries[k]))
		h.Write([]byte{0})
	}
	kb.fingerprint = hex.EncodeToString(h.Sum(nil))
	return kb
}

func (kb *KnowledgeBase) Lookup(topic string) (string, bool) {
	v, ok := kb.entries[strings.TrimSpace(topic)]
	return v, ok
}

// Topics returns the keys in sorted order.
func (kb *KnowledgeBase) Topics() []string {
	out := make([]string, len(kb.topics))
	copy(out, kb.topics)
	return out
}

// Entries returns a copy of the mapping.
func (kb *KnowledgeBase) Entries() map[string]string {
	out := make(map[string]string, len(kb.entries))
	for k, v := range kb.entries {
		out[k] = v
	}
	return out
}

func (kb *KnowledgeBase) Len() int { return len(kb.entries) }

// Fingerprint is a stable hash of the contents.
func (kb *KnowledgeBase) Fingerprint() string { return kb.fingerprint }
