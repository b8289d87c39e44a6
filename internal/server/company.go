package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacksonlee411/harbor-erp/internal/routing"
)

const companyHeader = "X-Company-Code"

type Company struct {
	Code string
}

type CompanyResolver interface {
	ResolveCompany(ctx context.Context, code string) (Company, bool, error)
}

type staticCompanyResolver struct {
	codes map[string]string
}

// newStaticCompanyResolver accepts the listed codes, case-insensitively. With
// no codes every non-empty code is accepted as given.
func newStaticCompanyResolver(codes []string) CompanyResolver {
	m := make(map[string]string, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			m[strings.ToLower(c)] = c
		}
	}
	return &staticCompanyResolver{codes: m}
}

func (r *staticCompanyResolver) ResolveCompany(_ context.Context, code string) (Company, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Company{}, false, nil
	}
	if len(r.codes) == 0 {
		return Company{Code: code}, true, nil
	}
	canonical, ok := r.codes[strings.ToLower(code)]
	if !ok {
		return Company{}, false, nil
	}
	return Company{Code: canonical}, true, nil
}

type companyCtxKey struct{}

func withCompany(ctx context.Context, c Company) context.Context {
	return context.WithValue(ctx, companyCtxKey{}, c)
}

func currentCompany(ctx context.Context) (Company, bool) {
	c, ok := ctx.Value(companyCtxKey{}).(Company)
	return c, ok
}

// currentCompanyID adapts currentCompany to the module controllers' getter.
func currentCompanyID(ctx context.Context) (string, bool) {
	c, ok := currentCompany(ctx)
	return c.Code, ok
}

// withCompanyContext resolves the company for master-data routes. Other
// routes pass through untouched.
func withCompanyContext(classifier *routing.Classifier, companies CompanyResolver, defaultCompany string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !pathHasPrefixSegment(r.URL.Path, "/masterdata") {
			next.ServeHTTP(w, r)
			return
		}
		rc := classifier.Classify(r.URL.Path)

		code := strings.TrimSpace(r.Header.Get(companyHeader))
		if code == "" {
			code = defaultCompany
		}
		if code == "" {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "company_required", "Send the X-Company-Code header.")
			return
		}
		c, ok, err := companies.ResolveCompany(r.Context(), code)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "company_not_found", "Company "+code+" does not exist.")
			return
		}
		next.ServeHTTP(w, r.WithContext(withCompany(r.Context(), c)))
	})
}

func pathHasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/"
}
