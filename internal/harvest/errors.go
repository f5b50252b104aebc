package harvest

import (
	"errors"
	"fmt"

	"github.com/sells-group/spear-sync/internal/auth"
	"github.com/sells-group/spear-sync/internal/model"
)

// DirectoryError reports a tenant enumeration failure. Fatal to a run.
type DirectoryError struct {
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("harvest: list tenants: %v", e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// countOffset marks a FetchError raised by the row count request.
const countOffset = -1

// FetchError reports a failed count or page request for one tenant. It only
// ends that tenant's pagination.
type FetchError struct {
	Tenant model.TenantID
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Offset == countOffset {
		return fmt.Sprintf("harvest: count tenant %d: %v", e.Tenant, e.Err)
	}
	return fmt.Sprintf("harvest: fetch tenant %d offset %d: %v", e.Tenant, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EnrichmentError reports a description lookup that failed after the forced
// token refresh. Recovered with the application type fallback.
type EnrichmentError struct {
	Reference string
	Err       error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("harvest: describe %s: %v", e.Reference, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an *auth.Error.
func IsAuthError(err error) bool {
	var authErr *auth.Error
	return errors.As(err, &authErr)
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var dirErr *DirectoryError
	return IsAuthError(err) || errors.As(err, &dirErr)
}
