package store

import (
	"strings"
	"time"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/permission"
)

// AdministrativePermission grants system operations to one group within one
// project. At most one record exists per (project, group).
type AdministrativePermission struct {
	IRI         string         `json:"iri"`
	Project     string         `json:"project"`
	Group       string         `json:"group"`
	Permissions permission.Set `json:"permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks the record is storable. IRI is assigned by the service,
// so it is not required here.
func (ap *AdministrativePermission) Validate() error {
	if ap.Project == "" {
		return errs.BadRequest("administrative permission requires a project IRI")
	}
	if ap.Group == "" {
		return errs.BadRequest("administrative permission requires a group IRI")
	}
	if len(ap.Permissions) == 0 {
		return errs.BadRequest("administrative permission requires at least one permission")
	}
	for _, p := range ap.Permissions {
		if p.Kind == permission.KindObjectAccess {
			return errs.BadRequest("administrative permission cannot carry object-access grants")
		}
	}
	return ap.Permissions.Validate()
}

// SelectorKind discriminates what a default object access permission is
// attached to.
type SelectorKind string

const (
	SelectorGroup                 SelectorKind = "group"
	SelectorResourceClass         SelectorKind = "resourceClass"
	SelectorResourceClassProperty SelectorKind = "resourceClassProperty"
	SelectorProperty              SelectorKind = "property"
)

// Selector is the discriminated target of a default object access
// permission: exactly one of group, resource class, resource class plus
// property, or property.
type Selector struct {
	Group         string `json:"group,omitempty"`
	ResourceClass string `json:"resource_class,omitempty"`
	Property      string `json:"property,omitempty"`
}

// ForGroup builds a group selector.
func ForGroup(group string) Selector { return Selector{Group: group} }

// ForResourceClass builds a resource-class selector.
func ForResourceClass(resourceClass string) Selector {
	return Selector{ResourceClass: resourceClass}
}

// ForResourceClassProperty builds a combined selector.
func ForResourceClassProperty(resourceClass, property string) Selector {
	return Selector{ResourceClass: resourceClass, Property: property}
}

// ForProperty builds a property selector.
func ForProperty(property string) Selector { return Selector{Property: property} }

// Kind returns the discriminator for the populated fields, or "" when the
// combination is not one of the four legal shapes.
func (s Selector) Kind() SelectorKind {
	switch {
	case s.Group != "" && s.ResourceClass == "" && s.Property == "":
		return SelectorGroup
	case s.Group == "" && s.ResourceClass != "" && s.Property == "":
		return SelectorResourceClass
	case s.Group == "" && s.ResourceClass != "" && s.Property != "":
		return SelectorResourceClassProperty
	case s.Group == "" && s.ResourceClass == "" && s.Property != "":
		return SelectorProperty
	default:
		return ""
	}
}

// Validate rejects selectors that are empty or populate more than one
// discriminator.
func (s Selector) Validate() error {
	if s.Kind() == "" {
		return errs.BadRequest("selector must populate exactly one of group, resource class, resource class + property, or property")
	}
	return nil
}

// CacheKey is the composite cache key for a DOAP lookup within a project.
func (s Selector) CacheKey(project string) string {
	return strings.Join([]string{
		"doap", project, string(s.Kind()), s.Group, s.ResourceClass, s.Property,
	}, "\x1f")
}

// DefaultObjectAccessPermission is the default data-visibility rule applied
// to entities newly created in a project. At most one record exists per
// (project, selector).
type DefaultObjectAccessPermission struct {
	IRI         string         `json:"iri"`
	Project     string         `json:"project"`
	Selector    Selector       `json:"selector"`
	Permissions permission.Set `json:"permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks the record is storable.
func (d *DefaultObjectAccessPermission) Validate() error {
	if d.Project == "" {
		return errs.BadRequest("default object access permission requires a project IRI")
	}
	if err := d.Selector.Validate(); err != nil {
		return err
	}
	if len(d.Permissions) == 0 {
		return errs.BadRequest("default object access permission requires at least one permission")
	}
	for _, p := range d.Permissions {
		if p.Kind != permission.KindObjectAccess {
			return errs.BadRequest("default object access permission can only carry object-access grants")
		}
	}
	return d.Permissions.Validate()
}

// AdminPatch is a partial update of an administrative permission. A patch
// with no fields set is rejected as a client error.
type AdminPatch struct {
	Group       *string         `json:"group,omitempty"`
	Permissions *permission.Set `json:"permissions,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p AdminPatch) IsZero() bool {
	return p.Group == nil && p.Permissions == nil
}

// DOAPPatch is a partial update of a default object access permission.
type DOAPPatch struct {
	Selector    *Selector       `json:"selector,omitempty"`
	Permissions *permission.Set `json:"permissions,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p DOAPPatch) IsZero() bool {
	return p.Selector == nil && p.Permissions == nil
}
