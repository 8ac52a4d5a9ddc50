package validation

import (
	"net/url"
	"strings"

	apperrors "go-eye-inspector/internal/errors"
)

// Location schemes understood by the artifact repository
const (
	SchemeFile   = "file"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeAzBlob = "azblob"
)

// LocationValidator handles model location validation logic
type LocationValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewLocationValidator creates a validator accepting every supported scheme
func NewLocationValidator() *LocationValidator {
	return &LocationValidator{
		allowedSchemes: []string{SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeAzBlob},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewLocationValidatorWithOptions creates a location validator with custom options
func NewLocationValidatorWithOptions(schemes []string, hosts []string) *LocationValidator {
	return &LocationValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// SchemeOf returns the scheme of a location; plain paths report "file".
func SchemeOf(location string) string {
	location = strings.TrimSpace(location)
	i := strings.Index(location, "://")
	if i <= 0 {
		return SchemeFile
	}
	return strings.ToLower(location[:i])
}

// ValidateLocation checks that a model location can be fetched
func (v *LocationValidator) ValidateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return apperrors.NewValidationError("location cannot be empty", nil)
	}

	scheme := SchemeOf(location)
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("location scheme not allowed", nil)
	}
	if scheme == SchemeFile {
		path := strings.TrimPrefix(strings.TrimSpace(location), "file://")
		if path == "" {
			return apperrors.NewValidationError("file location must have a path", nil)
		}
		return nil
	}

	parsed, err := url.Parse(location)
	if err != nil {
		return apperrors.NewValidationError("invalid location format", err)
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError("location must have a valid host", nil)
	}
	if scheme == SchemeAzBlob {
		// azblob://account/container/blob
		parts := strings.SplitN(strings.TrimPrefix(parsed.Path, "/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return apperrors.NewValidationError("azblob location must be azblob://account/container/blob", nil)
		}
	}
	if !v.isHostAllowed(parsed.Host) {
		return apperrors.NewValidationError("location host not allowed", nil)
	}
	return nil
}

// isSchemeAllowed checks if the scheme is in the allowed list
func (v *LocationValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *LocationValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
