package session

import "slices"

// Flash stores a value for the current and the next request.
func (s *Session) Flash(key string, val any) {
	s.Set(key, val)
	s.Set(KeyFlashNew, appendUnique(s.keys(KeyFlashNew), key))
	s.Set(KeyFlashOld, remove(s.keys(KeyFlashOld), key))
}

// Now stores a value for the current request only.
func (s *Session) Now(key string, val any) {
	s.Set(key, val)
	s.Set(KeyFlashOld, appendUnique(s.keys(KeyFlashOld), key))
}

// Reflash keeps every flashed value for one more request.
func (s *Session) Reflash() {
	s.Set(KeyFlashNew, appendUnique(s.keys(KeyFlashNew), s.keys(KeyFlashOld)...))
	s.Set(KeyFlashOld, []string{})
}

// Keep keeps the given flashed values for one more request.
func (s *Session) Keep(keys ...string) {
	s.Set(KeyFlashNew, appendUnique(s.keys(KeyFlashNew), keys...))
	s.Set(KeyFlashOld, remove(s.keys(KeyFlashOld), keys...))
}

// FlashInput flashes request input so forms can be refilled after a
// failed validation.
func (s *Session) FlashInput(input map[string]any) {
	s.Flash(KeyOldInput, input)
}

// OldInput returns a flashed input value, or nil when absent.
func (s *Session) OldInput(key string) any {
	input, _ := s.Values[KeyOldInput].(map[string]any)
	return input[key]
}

// AgeFlash drops the values flashed for the previous request and marks the
// current ones as old. The session middleware calls it once per request
// before saving. The session is marked dirty only when something changed.
func (s *Session) AgeFlash() {
	old, fresh := s.keys(KeyFlashOld), s.keys(KeyFlashNew)
	if len(old) == 0 && len(fresh) == 0 {
		return
	}
	for _, k := range old {
		s.Delete(k)
	}
	s.Set(KeyFlashOld, fresh)
	s.Set(KeyFlashNew, []string{})
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(list, it) {
			list = append(list, it)
		}
	}
	if list == nil {
		list = []string{}
	}
	return list
}

func remove(list []string, items ...string) []string {
	out := slices.DeleteFunc(list, func(v string) bool { return slices.Contains(items, v) })
	if out == nil {
		out = []string{}
	}
	return out
}
