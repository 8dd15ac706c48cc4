package profile

// Store exposes the profile to HTTP handlers and the reply pipeline.
type Store interface {
	Profile() Profile
	Projects() []Project
	FindProject(slug string) (Project, bool)
}

// MemoryStore implements Store over a single loaded profile.
type MemoryStore struct {
	profile Profile
}

// NewMemoryStore returns a MemoryStore serving p.
func NewMemoryStore(p Profile) *MemoryStore {
	return &MemoryStore{profile: p}
}

// Profile returns the stored profile.
func (s *MemoryStore) Profile() Profile {
	return s.profile
}

// Projects returns a copy of the project list.
func (s *MemoryStore) Projects() []Project {
	return append([]Project(nil), s.profile.Projects...)
}

// FindProject looks up a project by slug.
func (s *MemoryStore) FindProject(slug string) (Project, bool) {
	for _, project := range s.profile.Projects {
		if project.Slug == slug {
			return project, true
		}
	}
	return Project{}, false
}
