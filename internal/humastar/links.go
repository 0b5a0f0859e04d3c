package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds the RFC 8288 link headers derived for each operation path.
type Links struct {
	byPath map[string][]string
}

type route struct {
	path string
	tags []string
}

// NewLinks returns an empty set. Its Transformer can be installed in the
// API config before the routes exist and Derive called once they do.
func NewLinks() *Links {
	return &Links{byPath: map[string][]string{}}
}

// Derive replaces the links with those of the current OpenAPI document:
// item to collection, collection to item template, collections sharing a
// tag, and everything to and from the /health entry point. Editor (SSE)
// routes are skipped. Call after all routes are registered.
func (l *Links) Derive(api huma.API) {
	oapi := api.OpenAPI()
	l.byPath = map[string][]string{}

	var collections, items []route
	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if slices.Contains(tags, "editor") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, route{p, tags})
		} else {
			collections = append(collections, route{p, tags})
		}
	}
	// Map iteration order is random; keep headers stable.
	byPath := func(a, b route) int { return strings.Compare(a.path, b.path) }
	slices.SortFunc(collections, byPath)
	slices.SortFunc(items, byPath)

	for _, item := range items {
		parent := path.Dir(item.path)
		if _, ok := oapi.Paths[parent]; ok {
			l.add(item.path, parent, "collection")
			l.add(item.path, parent, "up")
		}
		if pi := oapi.Paths[item.path]; pi.Put != nil || pi.Patch != nil {
			l.add(item.path, item.path, "edit")
		}
	}

	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item.path) == coll.path {
				l.add(coll.path, item.path, "item")
			}
		}
		if oapi.Paths[coll.path].Post != nil {
			l.add(coll.path, coll.path, "create-form")
		}
		for _, other := range collections {
			if other.path != coll.path && sharesTag(coll.tags, other.tags) {
				l.add(coll.path, other.path, lastSegment(other.path))
			}
		}
		if coll.path == "/health" {
			continue
		}
		l.add(coll.path, "/health", "up")
		l.add("/health", coll.path, lastSegment(coll.path))
	}
	l.add("/health", "/openapi.json", "describedby")
	l.add("/health", "/openapi.json", "service-desc")
	l.add("/health", "/docs", "service-doc")

	for _, r := range append(collections, items...) {
		if ref := responseSchemaRef(oapi.Paths[r.path]); ref != "" {
			l.add(r.path, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	// Document the links in the OpenAPI document too.
	for p, pi := range oapi.Paths {
		headers := l.byPath[p]
		if len(headers) == 0 {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// For returns the derived links of an operation path.
func (l *Links) For(path string) []string {
	if l == nil {
		return nil
	}
	return l.byPath[path]
}

// Root returns the links of the /health entry point, for the plain
// handler serving "/".
func (l *Links) Root() []string {
	return l.For("/health")
}

// Transformer returns a Huma transformer that writes the derived links, a
// self link on item paths, and the pagination and action links response
// bodies provide through Pager and Actor.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (l *Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if !slices.Contains(l.byPath[from], val) {
		l.byPath[from] = append(l.byPath[from], val)
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func sharesTag(a, b []string) bool {
	for _, t := range a {
		if slices.Contains(b, t) {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the success response of op.
func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		if rel, href := parseLinkHeader(h); rel != "" {
			resp.Links[rel] = &huma.Link{
				OperationRef: href,
				Description:  "Related: " + rel,
			}
		}
	}
}

func responseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// parseLinkHeader splits `<url>; rel="name"`.
func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if v, ok := strings.CutPrefix(params, "rel="); ok {
		rel = strings.Trim(v, `"`)
	}
	return rel, href
}
