package diagnostics

// MarkHandle starts and ends markers for one tag of one category.
type MarkHandle struct {
	store    *Store
	category string
	tag      string
}

// Start records the beginning of fields.MarkerID. It returns false when the
// category budget is spent or the id is already in use.
func (h *MarkHandle) Start(fields Fields) bool {
	if h == nil {
		return false
	}
	return h.store.start(h.category, h.tag, fields)
}

// End closes fields.MarkerID. Unknown or closed ids are ignored.
func (h *MarkHandle) End(fields Fields) {
	if h == nil {
		return
	}
	h.store.end(h.category, h.tag, fields)
}

// Tag returns the tag the handle was created for.
func (h *MarkHandle) Tag() string {
	if h == nil {
		return ""
	}
	return h.tag
}
