package sources

import "context"

// Static serves entries taken from the config file.
type Static struct {
	entries map[string]string
}

func NewStatic(entries map[string]string) *Static {
	return &Static{entries: entries}
}

func (s *Static) Name() string { return NameStatic }

func (s *Static) Fetch(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}
