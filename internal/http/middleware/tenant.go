package middleware

import (
	"net/http"
	"strings"

	"github.com/helioworks/support-ai-platform/internal/tenancy"
)

// CompanyHeader carries the tenant on API requests.
const CompanyHeader = "X-Company-ID"

// RequireCompany enforces multi-tenancy headers for API requests.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID := strings.TrimSpace(r.Header.Get(CompanyHeader))
		if companyID == "" {
			http.Error(w, "missing "+CompanyHeader, http.StatusBadRequest)
			return
		}
		ctx := tenancy.WithCompanyID(r.Context(), companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
