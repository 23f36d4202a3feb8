package fetch

import "net/http"

// statusKinds maps the statuses with a specific Kind. Every other
// non-200 status is KindNonOK.
var statusKinds = map[int]Kind{
	http.StatusMovedPermanently:  KindMoved,
	http.StatusFound:             KindMoved,
	http.StatusSeeOther:          KindMoved,
	http.StatusTemporaryRedirect: KindMoved,
	http.StatusPermanentRedirect: KindMoved,
	http.StatusForbidden:         KindForbidden,
	http.StatusNotFound:          KindNotFound,
}

// Classify returns nil for 200 and a *StatusError for any other status.
// header supplies the Location of redirects and may be nil.
func Classify(statusCode int, header http.Header) error {
	if statusCode == http.StatusOK {
		return nil
	}

	kind, ok := statusKinds[statusCode]
	if !ok {
		kind = KindNonOK
	}

	err := &StatusError{
		Kind:       kind,
		StatusCode: statusCode,
	}
	if kind == KindMoved {
		err.Location = header.Get("Location")
	}

	return err
}
