package api

import (
	"time"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/permission"
	"github.com/stelae/stelae/pkg/store"
)

// permissionEntry is one permission on the wire. Level is the token form
// (RV, V, M, D, CR) and is only present for object access permissions.
type permissionEntry struct {
	Kind           string `json:"kind"`
	Level          string `json:"level,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

func toEntries(s permission.Set) []permissionEntry {
	entries := make([]permissionEntry, 0, len(s))
	for _, p := range s {
		e := permissionEntry{Kind: string(p.Kind), AdditionalInfo: p.AdditionalInfo}
		if p.Kind == permission.KindObjectAccess {
			e.Level = p.Level.String()
		}
		entries = append(entries, e)
	}
	return entries
}

func fromEntries(entries []permissionEntry) (permission.Set, error) {
	s := permission.NewSet()
	for _, e := range entries {
		kind := permission.Kind(e.Kind)
		if kind == permission.KindObjectAccess {
			level, err := permission.ParseLevel(e.Level)
			if err != nil {
				return nil, errs.BadRequest("permission entry: %v", err)
			}
			s = s.Add(permission.ObjectAccess(level, e.AdditionalInfo))
			continue
		}
		s = s.Add(permission.Administrative(kind, e.AdditionalInfo))
	}
	return s, nil
}

type createAdminRequest struct {
	Project     string            `json:"project"`
	Group       string            `json:"group"`
	Permissions []permissionEntry `json:"permissions"`
}

type createDOAPRequest struct {
	Project       string            `json:"project"`
	Group         string            `json:"group,omitempty"`
	ResourceClass string            `json:"resource_class,omitempty"`
	Property      string            `json:"property,omitempty"`
	Permissions   []permissionEntry `json:"permissions"`
}

type updateAdminRequest struct {
	Group       string            `json:"group,omitempty"`
	Permissions []permissionEntry `json:"permissions,omitempty"`
}

type updateDOAPRequest struct {
	Group         string            `json:"group,omitempty"`
	ResourceClass string            `json:"resource_class,omitempty"`
	Property      string            `json:"property,omitempty"`
	Permissions   []permissionEntry `json:"permissions,omitempty"`
}

type adminResponse struct {
	IRI         string            `json:"iri"`
	Project     string            `json:"project"`
	Group       string            `json:"group"`
	Permissions []permissionEntry `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toAdminResponse(ap *store.AdministrativePermission) adminResponse {
	return adminResponse{
		IRI:         ap.IRI,
		Project:     ap.Project,
		Group:       ap.Group,
		Permissions: toEntries(ap.Permissions),
		CreatedAt:   ap.CreatedAt,
		UpdatedAt:   ap.UpdatedAt,
	}
}

type doapResponse struct {
	IRI           string            `json:"iri"`
	Project       string            `json:"project"`
	Group         string            `json:"group,omitempty"`
	ResourceClass string            `json:"resource_class,omitempty"`
	Property      string            `json:"property,omitempty"`
	Permissions   []permissionEntry `json:"permissions"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toDOAPResponse(d *store.DefaultObjectAccessPermission) doapResponse {
	return doapResponse{
		IRI:           d.IRI,
		Project:       d.Project,
		Group:         d.Selector.Group,
		ResourceClass: d.Selector.ResourceClass,
		Property:      d.Selector.Property,
		Permissions:   toEntries(d.Permissions),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type resolveAdminResponse struct {
	Project     string            `json:"project"`
	Permissions []permissionEntry `json:"permissions"`
}

type resolveDOAPResponse struct {
	Project          string            `json:"project"`
	Tier             string            `json:"tier"`
	Permissions      []permissionEntry `json:"permissions"`
	PermissionString string            `json:"permission_string"`
}
