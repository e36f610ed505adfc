package resolver

import (
	"context"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/groups"
	"github.com/stelae/stelae/pkg/permission"
	"github.com/stelae/stelae/pkg/store"
)

// UserContext describes the user a resolution runs for: their effective
// groups within the project under consideration, whether they are a system
// admin, and whether the request is anonymous.
type UserContext struct {
	Groups      []string
	SystemAdmin bool
	Anonymous   bool
}

func (u UserContext) inGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// customGroups returns the user's non-built-in groups, order preserved.
func (u UserContext) customGroups() []string {
	var out []string
	for _, g := range u.Groups {
		if !groups.IsBuiltIn(g) {
			out = append(out, g)
		}
	}
	return out
}

// TierObserver is notified which tier decided a resolution; used for
// metrics and logging without coupling the engine to either.
type TierObserver func(operation, tier string)

// Resolver evaluates the precedence tiers against the permission stores.
type Resolver struct {
	admin   store.AdministrativeStore
	doap    store.DOAPStore
	observe TierObserver
}

// New creates a resolver over the given stores. The DOAP store should be
// the cached one; resolution is the hot path. observe may be nil.
func New(admin store.AdministrativeStore, doap store.DOAPStore, observe TierObserver) *Resolver {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &Resolver{admin: admin, doap: doap, observe: observe}
}

// tier is one precedence level: a guard deciding whether the tier is
// considered for this user at all, and an evaluator producing its
// permission set. The precedence order is exactly the order of the slice a
// tier appears in; nothing else ranks tiers.
type tier struct {
	name    string
	applies func() bool
	eval    func(ctx context.Context) (permission.Set, error)
}

// result is a single-occupancy slot for the winning tier. Filling it twice
// is an inconsistency, not a recoverable condition: it would mean two
// precedence tiers were merged. The evaluation loop short-circuits so this
// cannot happen, but the guard is kept as a hard invariant rather than
// trusting the loop shape to survive refactoring.
type result struct {
	tier  string
	perms permission.Set
	full  bool
}

func (r *result) fill(name string, perms permission.Set) error {
	if r.full {
		return errs.InconsistentState("precedence tiers %s and %s both produced a result", r.tier, name)
	}
	r.tier = name
	r.perms = perms
	r.full = true
	return nil
}

// runTiers evaluates tiers strictly in order and stops at the first
// non-empty result. An applicable tier with no stored rule is an ordinary
// miss, never an error.
func runTiers(ctx context.Context, tiers []tier, res *result) error {
	for _, t := range tiers {
		if !t.applies() {
			continue
		}
		perms, err := t.eval(ctx)
		if err != nil {
			return err
		}
		if len(perms) == 0 {
			continue
		}
		if err := res.fill(t.name, perms); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// adminGet adapts an administrative store lookup into a tier evaluator.
func (r *Resolver) adminGet(project, group string) func(context.Context) (permission.Set, error) {
	return func(ctx context.Context) (permission.Set, error) {
		ap, err := r.admin.Get(ctx, project, group)
		if err != nil {
			return nil, err
		}
		if ap == nil {
			return nil, nil
		}
		return ap.Permissions, nil
	}
}

// adminUnion unions the administrative permissions of several groups under
// the higher-level-wins merge rule.
func (r *Resolver) adminUnion(project string, groupIRIs []string) func(context.Context) (permission.Set, error) {
	return func(ctx context.Context) (permission.Set, error) {
		var merged permission.Set
		for _, g := range groupIRIs {
			ap, err := r.admin.Get(ctx, project, g)
			if err != nil {
				return nil, err
			}
			if ap != nil {
				merged = merged.Merge(ap.Permissions)
			}
		}
		return merged, nil
	}
}

// Administrative resolves the administrative permissions of a user within a
// project. The empty set is a legitimate answer meaning "no elevated
// rights".
//
// Tier order: ProjectAdmin, then the union of the user's custom groups,
// then ProjectMember, then KnownUser.
func (r *Resolver) Administrative(ctx context.Context, user UserContext, project string) (permission.Set, error) {
	custom := user.customGroups()
	tiers := []tier{
		{
			name:    "projectAdmin",
			applies: func() bool { return user.inGroup(groups.ProjectAdmin) },
			eval:    r.adminGet(project, groups.ProjectAdmin),
		},
		{
			name:    "customGroups",
			applies: func() bool { return len(custom) > 0 },
			eval:    r.adminUnion(project, custom),
		},
		{
			name:    "projectMember",
			applies: func() bool { return user.inGroup(groups.ProjectMember) },
			eval:    r.adminGet(project, groups.ProjectMember),
		},
		{
			name:    "knownUser",
			applies: func() bool { return !user.Anonymous },
			eval:    r.adminGet(project, groups.KnownUser),
		},
	}

	var res result
	if err := runTiers(ctx, tiers, &res); err != nil {
		return nil, err
	}
	if !res.full {
		r.observe("administrative", "none")
		return nil, nil
	}
	r.observe("administrative", res.tier)
	return res.perms, nil
}
