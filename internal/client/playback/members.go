package playback

// MemberSet is the ordered display-name list of a room as seen by one client.
type MemberSet struct {
	names []string
}

// Add appends name, moving it to the end if it is already present.
func (m *MemberSet) Add(name string) {
	m.Remove(name)
	m.names = append(m.names, name)
}

// Remove drops name if present.
func (m *MemberSet) Remove(name string) {
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			return
		}
	}
}

func (m *MemberSet) Contains(name string) bool {
	for _, n := range m.names {
		if n == name {
			return true
		}
	}
	return false
}

// List returns a copy of the current members in join order.
func (m *MemberSet) List() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *MemberSet) Len() int { return len(m.names) }

func (m *MemberSet) Reset() { m.names = nil }
