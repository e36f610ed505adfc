package authz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stelae/stelae/pkg/audit"
	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/groups"
	"github.com/stelae/stelae/pkg/locking"
	"github.com/stelae/stelae/pkg/observability"
	"github.com/stelae/stelae/pkg/permission"
	"github.com/stelae/stelae/pkg/resolver"
	"github.com/stelae/stelae/pkg/store"
)

// Requester identifies the user a call runs for or against. Anonymous
// requesters never qualify for the KnownUser tier and can never mutate
// permission records.
type Requester struct {
	IRI       string `json:"iri"`
	Anonymous bool   `json:"anonymous"`
}

// PermissionsData is the per-request aggregate attached to a user's
// session context: effective groups and administrative permissions per
// project. It is derived from stored memberships and is never itself a
// source of truth.
type PermissionsData struct {
	GroupsPerProject                    map[string][]string       `json:"groups_per_project"`
	AdministrativePermissionsPerProject map[string]permission.Set `json:"administrative_permissions_per_project"`
}

// Service is the authorization engine's facade: resolution on the read
// side, coordinated mutations on the write side.
type Service struct {
	admin    store.AdministrativeStore
	doap     store.DOAPStore
	members  groups.MembershipProvider
	resolver *resolver.Resolver
	locks    *locking.Registry
	log      *observability.Logger
	metrics  *observability.Metrics
	audit    audit.Store
}

// Options configures optional service collaborators.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	// Audit, when set, receives an event for every mutation attempt,
	// denied ones included.
	Audit audit.Store
}

// New creates a Service. doap should be the cached store; every resource
// and value creation resolves against it.
func New(admin store.AdministrativeStore, doap store.DOAPStore, members groups.MembershipProvider, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Service{
		admin:   admin,
		doap:    doap,
		members: members,
		locks:   locking.NewRegistry(),
		log:     log,
		metrics: opts.Metrics,
		audit:   opts.Audit,
	}

	var observe resolver.TierObserver
	if opts.Metrics != nil {
		observe = func(operation, tier string) {
			opts.Metrics.ResolutionsTotal.WithLabelValues(operation, tier).Inc()
		}
		s.locks.WaitObserver = func(key string, wait time.Duration) {
			scope := "record"
			if key == locking.CreationKey {
				scope = "creation"
			}
			opts.Metrics.LockWaitSeconds.WithLabelValues(scope).Observe(wait.Seconds())
		}
	}
	s.resolver = resolver.New(admin, doap, observe)
	return s
}

// userContext materializes the requester's groups for one project.
func (s *Service) userContext(ctx context.Context, r Requester, project string) (resolver.UserContext, error) {
	if r.Anonymous || r.IRI == "" {
		return resolver.UserContext{Anonymous: true}, nil
	}
	m, err := s.members.MembershipsFor(ctx, r.IRI)
	if err != nil {
		return resolver.UserContext{}, err
	}
	perProject, err := groups.EffectiveGroups(*m)
	if err != nil {
		return resolver.UserContext{}, err
	}
	return resolver.UserContext{
		Groups:      perProject[project],
		SystemAdmin: m.IsSystemAdmin,
	}, nil
}

// PermissionsDataFor computes the session aggregate for a user: groups per
// project plus the administrative permissions resolved for each of those
// projects.
func (s *Service) PermissionsDataFor(ctx context.Context, r Requester) (*PermissionsData, error) {
	data := &PermissionsData{
		GroupsPerProject:                    map[string][]string{},
		AdministrativePermissionsPerProject: map[string]permission.Set{},
	}
	if r.Anonymous || r.IRI == "" {
		return data, nil
	}

	m, err := s.members.MembershipsFor(ctx, r.IRI)
	if err != nil {
		return nil, err
	}
	perProject, err := groups.EffectiveGroups(*m)
	if err != nil {
		return nil, err
	}
	data.GroupsPerProject = perProject

	for project, projectGroups := range perProject {
		user := resolver.UserContext{Groups: projectGroups, SystemAdmin: m.IsSystemAdmin}
		perms, err := s.resolver.Administrative(ctx, user, project)
		if err != nil {
			return nil, err
		}
		if len(perms) > 0 {
			data.AdministrativePermissionsPerProject[project] = perms
		}
	}
	return data, nil
}

// ResolveAdministrative resolves the administrative permissions of a user
// within a project. An empty set means "no elevated rights" and is not an
// error.
func (s *Service) ResolveAdministrative(ctx context.Context, r Requester, project string) (permission.Set, error) {
	if project == "" {
		return nil, errs.BadRequest("administrative resolution requires a project IRI")
	}
	start := time.Now()
	user, err := s.userContext(ctx, r, project)
	if err != nil {
		return nil, err
	}
	perms, err := s.resolver.Administrative(ctx, user, project)
	s.observeResolution("administrative", start)
	return perms, err
}

// DOAPQuery describes a default object access resolution for a new entity
// created by Target.
type DOAPQuery struct {
	Project        string    `json:"project"`
	ResourceClass  string    `json:"resource_class"`
	Property       string    `json:"property,omitempty"`
	PropertyTarget bool      `json:"property_target"`
	Target         Requester `json:"target"`
}

// ResolveDefaultObjectAccess resolves the permission string for a new
// entity. Always returns a result; the fallback tier guarantees one.
func (s *Service) ResolveDefaultObjectAccess(ctx context.Context, q DOAPQuery) (*resolver.DOAPResult, error) {
	start := time.Now()
	user, err := s.userContext(ctx, q.Target, q.Project)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.DefaultObjectAccess(ctx, resolver.DOAPRequest{
		Project:        q.Project,
		ResourceClass:  q.ResourceClass,
		Property:       q.Property,
		PropertyTarget: q.PropertyTarget,
		User:           user,
	})
	s.observeResolution("defaultObjectAccess", start)
	return res, err
}

func (s *Service) observeResolution(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ResolutionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// authorize checks the caller may mutate permission records of project.
// Runs before the mutation coordinator is engaged.
func (s *Service) authorize(ctx context.Context, caller Requester, project string) error {
	if caller.Anonymous || caller.IRI == "" {
		return errs.Forbidden("anonymous callers cannot modify permissions")
	}
	m, err := s.members.MembershipsFor(ctx, caller.IRI)
	if err != nil {
		return err
	}
	if m.IsSystemAdmin {
		return nil
	}
	for _, p := range m.AdminOf {
		if p == project {
			return nil
		}
	}
	return errs.Forbidden("user %s is not an admin of project %s", caller.IRI, project)
}

func mintIRI() string {
	return "http://stelae.io/permissions/" + uuid.NewString()
}

func (s *Service) countMutation(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, errs.ErrConflict):
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	s.metrics.MutationsTotal.WithLabelValues(operation, outcome).Inc()
	s.metrics.LockKeysActive.Set(float64(s.locks.Len()))
}

// recordAudit writes the trail entry for a mutation attempt. A failed
// write is logged and swallowed; it never fails the mutation itself.
func (s *Service) recordAudit(ctx context.Context, eventType audit.EventType, caller Requester, project, permissionIRI string, mutErr error) {
	if s.audit == nil {
		return
	}

	outcome := audit.OutcomeSuccess
	switch {
	case errors.Is(mutErr, errs.ErrForbidden):
		outcome = audit.OutcomeDenied
	case errors.Is(mutErr, errs.ErrConflict):
		outcome = audit.OutcomeConflict
	case mutErr != nil:
		outcome = audit.OutcomeError
	}

	actor := caller.IRI
	if caller.Anonymous || actor == "" {
		actor = audit.AnonymousActor
	}
	e := audit.Event{
		Type:          eventType,
		Outcome:       outcome,
		ActorIRI:      actor,
		Project:       project,
		PermissionIRI: permissionIRI,
		RequestID:     observability.RequestID(ctx),
	}
	if mutErr != nil {
		e.Detail = mutErr.Error()
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.WithError(err).Warn("failed to record audit event", "event_type", string(eventType))
	}
}

// CreateAdministrativePermission creates the administrative permission for
// (project, group). Creation is serialized on the global creation key so
// the uniqueness check and the insert are one atomic step; the store's
// unique constraint is only the backstop.
func (s *Service) CreateAdministrativePermission(ctx context.Context, caller Requester, ap *store.AdministrativePermission) (out *store.AdministrativePermission, err error) {
	defer func() {
		s.countMutation("createAdministrative", err)
		s.recordAudit(ctx, audit.EventCreateAdministrative, caller, ap.Project, ap.IRI, err)
	}()

	if err = ap.Validate(); err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, caller, ap.Project); err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, locking.CreationKey, func(ctx context.Context) error {
		existing, lookupErr := s.admin.Get(ctx, ap.Project, ap.Group)
		if lookupErr != nil {
			return lookupErr
		}
		if existing != nil {
			return errs.Conflict("administrative permission for (%s, %s)", ap.Project, ap.Group)
		}
		ap.IRI = mintIRI()
		return s.admin.Create(ctx, ap)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("created administrative permission",
		"iri", ap.IRI, "project", ap.Project, "group", ap.Group)
	return ap, nil
}

// CreateDefaultObjectAccessPermission creates the DOAP for (project,
// selector), under the same creation discipline.
func (s *Service) CreateDefaultObjectAccessPermission(ctx context.Context, caller Requester, d *store.DefaultObjectAccessPermission) (out *store.DefaultObjectAccessPermission, err error) {
	defer func() {
		s.countMutation("createDefaultObjectAccess", err)
		s.recordAudit(ctx, audit.EventCreateDOAP, caller, d.Project, d.IRI, err)
	}()

	if err = d.Validate(); err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, caller, d.Project); err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, locking.CreationKey, func(ctx context.Context) error {
		existing, lookupErr := s.doap.Get(ctx, d.Project, d.Selector)
		if lookupErr != nil {
			return lookupErr
		}
		if existing != nil {
			return errs.Conflict("default object access permission for (%s, %s)", d.Project, d.Selector.Kind())
		}
		d.IRI = mintIRI()
		return s.doap.Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("created default object access permission",
		"iri", d.IRI, "project", d.Project, "selector", string(d.Selector.Kind()))
	return d, nil
}

// UpdateAdministrativePermission applies a partial update to the record
// with the given IRI, serialized on the record itself so unrelated records
// stay concurrent.
func (s *Service) UpdateAdministrativePermission(ctx context.Context, caller Requester, iri string, patch store.AdminPatch) (out *store.AdministrativePermission, err error) {
	var project string
	defer func() {
		s.countMutation("updateAdministrative", err)
		s.recordAudit(ctx, audit.EventUpdateAdministrative, caller, project, iri, err)
	}()

	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}

	existing, err := s.admin.GetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound("administrative permission %s", iri)
	}
	project = existing.Project
	if err = s.authorize(ctx, caller, existing.Project); err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, iri, func(ctx context.Context) error {
		out, err = s.admin.Update(ctx, iri, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("updated administrative permission", "iri", iri)
	return out, nil
}

// UpdateDefaultObjectAccessPermission applies a partial update to the DOAP
// with the given IRI. The cached store refreshes its entry as part of the
// update, so the next resolution observes the new rule.
func (s *Service) UpdateDefaultObjectAccessPermission(ctx context.Context, caller Requester, iri string, patch store.DOAPPatch) (out *store.DefaultObjectAccessPermission, err error) {
	var project string
	defer func() {
		s.countMutation("updateDefaultObjectAccess", err)
		s.recordAudit(ctx, audit.EventUpdateDOAP, caller, project, iri, err)
	}()

	if patch.IsZero() {
		return nil, errs.BadRequest("update requires at least one field")
	}

	existing, err := s.doap.GetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errs.NotFound("default object access permission %s", iri)
	}
	project = existing.Project
	if err = s.authorize(ctx, caller, existing.Project); err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, iri, func(ctx context.Context) error {
		out, err = s.doap.Update(ctx, iri, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("updated default object access permission", "iri", iri)
	return out, nil
}

// ListAdministrativePermissions lists a project's administrative
// permission records for auditing.
func (s *Service) ListAdministrativePermissions(ctx context.Context, caller Requester, project string) ([]*store.AdministrativePermission, error) {
	if err := s.authorize(ctx, caller, project); err != nil {
		return nil, err
	}
	return s.admin.GetForProject(ctx, project)
}

// ListDefaultObjectAccessPermissions lists a project's DOAP records for
// auditing.
func (s *Service) ListDefaultObjectAccessPermissions(ctx context.Context, caller Requester, project string) ([]*store.DefaultObjectAccessPermission, error) {
	if err := s.authorize(ctx, caller, project); err != nil {
		return nil, err
	}
	return s.doap.GetForProject(ctx, project)
}

// AuditTrail returns a project's permission mutation history, newest
// first. Restricted to admins of the project, like the record listings.
func (s *Service) AuditTrail(ctx context.Context, caller Requester, f audit.Filter) ([]audit.Event, error) {
	if f.Project == "" {
		return nil, errs.BadRequest("audit trail queries require a project IRI")
	}
	if err := s.authorize(ctx, caller, f.Project); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, errs.NotFound("audit trail is not enabled")
	}
	return s.audit.Search(ctx, f)
}

// WarmCache pre-loads the DOAP cache for the given projects by reading
// every record's selector through the cached store.
func (s *Service) WarmCache(ctx context.Context, projects []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, project := range projects {
		g.Go(func() error {
			records, err := s.doap.GetForProject(ctx, project)
			if err != nil {
				return err
			}
			for _, d := range records {
				if _, err := s.doap.Get(ctx, d.Project, d.Selector); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
