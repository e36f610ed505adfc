package resolver

import (
	"context"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/groups"
	"github.com/stelae/stelae/pkg/permission"
	"github.com/stelae/stelae/pkg/store"
)

// DOAPRequest asks for the default object access string to stamp onto a
// new entity. PropertyTarget selects the property tiers: a new value needs
// both its resource class and its property, a new resource only the class.
type DOAPRequest struct {
	Project        string
	ResourceClass  string
	Property       string
	PropertyTarget bool
	User           UserContext
}

func (req DOAPRequest) validate() error {
	if req.Project == "" {
		return errs.BadRequest("default object access resolution requires a project IRI")
	}
	if req.ResourceClass == "" {
		return errs.BadRequest("default object access resolution requires a resource class IRI")
	}
	if req.PropertyTarget && req.Property == "" {
		return errs.BadRequest("property-targeted resolution requires a property IRI")
	}
	return nil
}

// DOAPResult is the outcome of a default object access resolution: the
// winning tier, its permissions, and the serialized permission string.
type DOAPResult struct {
	Tier             string         `json:"tier"`
	Permissions      permission.Set `json:"permissions"`
	PermissionString string         `json:"permission_string"`
}

// doapGet adapts a DOAP store lookup into a tier evaluator.
func (r *Resolver) doapGet(project string, sel store.Selector) func(context.Context) (permission.Set, error) {
	return func(ctx context.Context) (permission.Set, error) {
		d, err := r.doap.Get(ctx, project, sel)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, nil
		}
		return d.Permissions, nil
	}
}

// doapUnion unions the DOAPs of several group selectors under the
// higher-level-wins merge rule.
func (r *Resolver) doapUnion(project string, groupIRIs []string) func(context.Context) (permission.Set, error) {
	return func(ctx context.Context) (permission.Set, error) {
		var merged permission.Set
		for _, g := range groupIRIs {
			d, err := r.doap.Get(ctx, project, store.ForGroup(g))
			if err != nil {
				return nil, err
			}
			if d != nil {
				merged = merged.Merge(d.Permissions)
			}
		}
		return merged, nil
	}
}

// DefaultObjectAccess resolves the permission string for a new entity.
//
// Tiers, strictly ordered: the project's ProjectAdmin rule; then class and
// property rules, each first in the project then in the system project (so
// built-in ontology entities can carry defaults a project may override);
// then the user's custom groups, ProjectMember, and KnownUser; and finally
// the fallback {ChangeRights -> Creator}, which guarantees every new entity
// has at least one well-defined access rule. Exactly one tier populates the
// result; the fallback fires iff every other tier was empty.
func (r *Resolver) DefaultObjectAccess(ctx context.Context, req DOAPRequest) (*DOAPResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	user := req.User
	custom := user.customGroups()
	forProperty := func() bool { return req.PropertyTarget }
	forResource := func() bool { return !req.PropertyTarget }

	tiers := []tier{
		{
			name:    "projectAdmin",
			applies: func() bool { return user.inGroup(groups.ProjectAdmin) || user.SystemAdmin },
			eval:    r.doapGet(req.Project, store.ForGroup(groups.ProjectAdmin)),
		},
		{
			name:    "projectResourceClassProperty",
			applies: forProperty,
			eval:    r.doapGet(req.Project, store.ForResourceClassProperty(req.ResourceClass, req.Property)),
		},
		{
			name:    "systemResourceClassProperty",
			applies: forProperty,
			eval:    r.doapGet(groups.SystemProject, store.ForResourceClassProperty(req.ResourceClass, req.Property)),
		},
		{
			name:    "projectResourceClass",
			applies: forResource,
			eval:    r.doapGet(req.Project, store.ForResourceClass(req.ResourceClass)),
		},
		{
			name:    "systemResourceClass",
			applies: forResource,
			eval:    r.doapGet(groups.SystemProject, store.ForResourceClass(req.ResourceClass)),
		},
		{
			name:    "projectProperty",
			applies: forProperty,
			eval:    r.doapGet(req.Project, store.ForProperty(req.Property)),
		},
		{
			name:    "systemProperty",
			applies: forProperty,
			eval:    r.doapGet(groups.SystemProject, store.ForProperty(req.Property)),
		},
		{
			name:    "customGroups",
			applies: func() bool { return len(custom) > 0 },
			eval:    r.doapUnion(req.Project, custom),
		},
		{
			name:    "projectMember",
			applies: func() bool { return user.inGroup(groups.ProjectMember) },
			eval:    r.doapGet(req.Project, store.ForGroup(groups.ProjectMember)),
		},
		{
			name:    "knownUser",
			applies: func() bool { return !user.Anonymous },
			eval:    r.doapGet(req.Project, store.ForGroup(groups.KnownUser)),
		},
	}

	var res result
	if err := runTiers(ctx, tiers, &res); err != nil {
		return nil, err
	}
	if !res.full {
		fallback := permission.NewSet(permission.ObjectAccess(permission.ChangeRights, groups.Creator))
		if err := res.fill("fallback", fallback); err != nil {
			return nil, err
		}
	}

	formatted, err := permission.Format(res.perms)
	if err != nil {
		return nil, errs.InconsistentState("winning tier %s produced an unformattable permission set: %v", res.tier, err)
	}

	r.observe("defaultObjectAccess", res.tier)
	return &DOAPResult{
		Tier:             res.tier,
		Permissions:      res.perms,
		PermissionString: formatted,
	}, nil
}
