package tree

import (
	"sort"
	"strings"
	"time"

	"drive-api/internal/models"
)

// Projection is the public view of a node. Files carry a resolvable URL,
// folders carry none. The storage reference itself is never exposed.
type Projection struct {
	ID        string          `json:"id"`
	ParentID  *string         `json:"parent_id"`
	Name      string          `json:"name"`
	Kind      models.NodeKind `json:"kind"`
	MediaType *string         `json:"media_type,omitempty"`
	SizeBytes *int64          `json:"size_bytes,omitempty"`
	URL       *string         `json:"url"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Service) project(n *models.Node) Projection {
	p := Projection{
		ID:        n.ID,
		ParentID:  n.ParentID,
		Name:      n.Name,
		Kind:      n.Kind,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if !n.IsFolder() {
		p.MediaType = n.MediaType
		p.SizeBytes = n.SizeBytes
		if n.ContentRef != nil {
			url := s.blobs.URL(*n.ContentRef)
			p.URL = &url
		}
	}
	return p
}

// SortForDisplay orders folders before files, then by name (case-insensitive,
// ties broken by the exact name). This is how clients present a listing.
func SortForDisplay(items []Projection) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind != b.Kind {
			return a.Kind == models.KindFolder
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
}
