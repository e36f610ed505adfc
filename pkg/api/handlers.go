package api

import (
	"net/http"

	"github.com/stelae/stelae/pkg/audit"
	"github.com/stelae/stelae/pkg/authz"
	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/httputil"
	"github.com/stelae/stelae/pkg/store"
)

// createAdministrative handles POST /api/v1/permissions/administrative
func (s *Server) createAdministrative(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	perms, err := fromEntries(req.Permissions)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	ap := &store.AdministrativePermission{
		Project:     req.Project,
		Group:       req.Group,
		Permissions: perms,
	}
	created, err := s.service.CreateAdministrativePermission(r.Context(), requester(r), ap)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, toAdminResponse(created))
}

// updateAdministrative handles PATCH /api/v1/permissions/administrative/{iri}
func (s *Server) updateAdministrative(w http.ResponseWriter, r *http.Request) {
	iri, err := httputil.PathVar(r, "iri")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var req updateAdminRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var patch store.AdminPatch
	if req.Group != "" {
		patch.Group = &req.Group
	}
	if req.Permissions != nil {
		perms, err := fromEntries(req.Permissions)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		patch.Permissions = &perms
	}

	updated, err := s.service.UpdateAdministrativePermission(r.Context(), requester(r), iri, patch)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, toAdminResponse(updated))
}

// listAdministrative handles GET /api/v1/projects/{project}/permissions/administrative
func (s *Server) listAdministrative(w http.ResponseWriter, r *http.Request) {
	project, err := httputil.PathVar(r, "project")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	records, err := s.service.ListAdministrativePermissions(r.Context(), requester(r), project)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	out := make([]adminResponse, 0, len(records))
	for _, ap := range records {
		out = append(out, toAdminResponse(ap))
	}
	httputil.WriteSuccess(w, out)
}

// createDOAP handles POST /api/v1/permissions/doap
func (s *Server) createDOAP(w http.ResponseWriter, r *http.Request) {
	var req createDOAPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	perms, err := fromEntries(req.Permissions)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	d := &store.DefaultObjectAccessPermission{
		Project: req.Project,
		Selector: store.Selector{
			Group:         req.Group,
			ResourceClass: req.ResourceClass,
			Property:      req.Property,
		},
		Permissions: perms,
	}
	created, err := s.service.CreateDefaultObjectAccessPermission(r.Context(), requester(r), d)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, toDOAPResponse(created))
}

// updateDOAP handles PATCH /api/v1/permissions/doap/{iri}
func (s *Server) updateDOAP(w http.ResponseWriter, r *http.Request) {
	iri, err := httputil.PathVar(r, "iri")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var req updateDOAPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var patch store.DOAPPatch
	if req.Group != "" || req.ResourceClass != "" || req.Property != "" {
		patch.Selector = &store.Selector{
			Group:         req.Group,
			ResourceClass: req.ResourceClass,
			Property:      req.Property,
		}
	}
	if req.Permissions != nil {
		perms, err := fromEntries(req.Permissions)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		patch.Permissions = &perms
	}

	updated, err := s.service.UpdateDefaultObjectAccessPermission(r.Context(), requester(r), iri, patch)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, toDOAPResponse(updated))
}

// listDOAP handles GET /api/v1/projects/{project}/permissions/doap
func (s *Server) listDOAP(w http.ResponseWriter, r *http.Request) {
	project, err := httputil.PathVar(r, "project")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	records, err := s.service.ListDefaultObjectAccessPermissions(r.Context(), requester(r), project)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	out := make([]doapResponse, 0, len(records))
	for _, d := range records {
		out = append(out, toDOAPResponse(d))
	}
	httputil.WriteSuccess(w, out)
}

// resolveAdministrative handles GET /api/v1/resolve/administrative?project=...
func (s *Server) resolveAdministrative(w http.ResponseWriter, r *http.Request) {
	project := httputil.QueryString(r, "project", "")
	if project == "" {
		httputil.WriteError(w, r, errs.BadRequest("query parameter project is required"))
		return
	}

	perms, err := s.service.ResolveAdministrative(r.Context(), requester(r), project)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resolveAdminResponse{
		Project:     project,
		Permissions: toEntries(perms),
	})
}

// resolveDOAP handles GET /api/v1/resolve/doap?project=...&resource_class=...
func (s *Server) resolveDOAP(w http.ResponseWriter, r *http.Request) {
	propertyTarget, err := httputil.QueryBool(r, "property_target", false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := s.service.ResolveDefaultObjectAccess(r.Context(), authz.DOAPQuery{
		Project:        httputil.QueryString(r, "project", ""),
		ResourceClass:  httputil.QueryString(r, "resource_class", ""),
		Property:       httputil.QueryString(r, "property", ""),
		PropertyTarget: propertyTarget,
		Target:         requester(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resolveDOAPResponse{
		Project:          httputil.QueryString(r, "project", ""),
		Tier:             res.Tier,
		Permissions:      toEntries(res.Permissions),
		PermissionString: res.PermissionString,
	})
}

// permissionsData handles GET /api/v1/permissions-data
func (s *Server) permissionsData(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.PermissionsDataFor(r.Context(), requester(r))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, data)
}

// auditTrail handles GET /api/v1/projects/{project}/audit
func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	project, err := httputil.PathVar(r, "project")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	events, err := s.service.AuditTrail(r.Context(), requester(r), audit.Filter{
		Project:  project,
		ActorIRI: httputil.QueryString(r, "actor", ""),
		Type:     audit.EventType(httputil.QueryString(r, "event_type", "")),
		Limit:    limit,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
